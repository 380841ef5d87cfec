// Package response содержит типы и функции для формирования единообразных
// JSON-ответов HTTP-обработчиков: успешных ответов, отказов в доступе
// и ошибок валидации.
package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

// Коды ошибок, не связанные с решением о доступе.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeValidation         = "VALIDATION_ERROR"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternal           = "SERVER_ERROR"
)

// ErrorResponse описывает тело ответа с ошибкой.
// Redirect заполняется для отказов в доступе к сообществу.
type ErrorResponse struct {
	Success   bool   `json:"success" example:"false"`
	ErrorCode string `json:"errorCode" example:"NO_SUBSCRIPTION"`
	Message   string `json:"message" example:"An active subscription is required to access the Community."`
	Redirect  string `json:"redirect,omitempty" example:"/subscription"`
}

// Error возвращает ответ с кодом и текстом ошибки.
func Error(code, msg string) ErrorResponse {
	return ErrorResponse{
		Success:   false,
		ErrorCode: code,
		Message:   msg,
	}
}

// Denied возвращает отказ в доступе с адресом для перенаправления.
func Denied(code, msg, redirect string) ErrorResponse {
	resp := Error(code, msg)
	resp.Redirect = redirect
	return resp
}

// ValidationError формирует ответ по ошибкам валидации.
// Каждое нарушение превращается в читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Error(CodeValidation, strings.Join(errsMsgs, ", "))
}
