package entitlement

// Коды ошибок, которые видит клиент.
const (
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeUserNotFound   = "USER_NOT_FOUND"
	CodeNoSubscription = "NO_SUBSCRIPTION"
	CodePaymentFailed  = "PAYMENT_FAILED"
	CodeServerError    = "SERVER_ERROR"
	CodeForbidden      = "FORBIDDEN"
)

var messages = map[string]string{
	CodeUnauthorized:   "Authentication required. Please log in.",
	CodeUserNotFound:   "User account not found.",
	CodeNoSubscription: "An active subscription is required to access the Community.",
	CodePaymentFailed:  "Your subscription payment has failed. Please update your payment method.",
	CodeServerError:    "An error occurred. Please try again.",
	CodeForbidden:      "You do not have permission to perform this action.",
}

// Message возвращает текст для пользователя по коду ошибки.
func Message(code string) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[CodeServerError]
}

// ErrorCode сопоставляет отказ коду ошибки. Для решения с доступом возвращает пустую строку.
func ErrorCode(d Decision) string {
	if d.HasAccess {
		return ""
	}
	switch d.AccessType {
	case AccessPaymentFailed:
		return CodePaymentFailed
	case AccessError:
		return CodeServerError
	case AccessNone:
		if d.Reason == ReasonUserNotFound {
			return CodeUserNotFound
		}
		return CodeNoSubscription
	default:
		return CodeNoSubscription
	}
}
