// Package entitlement вычисляет решение о доступе пользователя к сообществу.
//
// Resolver вычисляет решение только по строке пользователя и текущему времени, без
// внешних вызовов и скрытого состояния. Его используют серверный
// AccessGate и эндпоинт /api/me, которым питается клиентский RouteGuard.
package entitlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/magabrotheeeer/community-access/internal/models"
)

// AccessType машиночитаемый тип доступа.
type AccessType string

// Типы доступа.
const (
	AccessAdmin         AccessType = "ADMIN"
	AccessA7FXElite     AccessType = "A7FX_ELITE_ACTIVE"
	AccessAuraFX        AccessType = "AURA_FX_ACTIVE"
	AccessFree          AccessType = "FREE"
	AccessNone          AccessType = "NONE"
	AccessPaymentFailed AccessType = "PAYMENT_FAILED"
	AccessError         AccessType = "ERROR"
)

// Причины решений.
const (
	ReasonUserNotFound   = "user not found or no id"
	ReasonSuperAdmin     = "super admin"
	ReasonPaymentFailed  = "payment failed"
	ReasonAdminRole      = "admin role"
	ReasonElitePlan      = "active a7fx subscription"
	ReasonEliteRole      = "elite role"
	ReasonAuraPlan       = "active aura subscription"
	ReasonPremiumRole    = "premium role"
	ReasonFreePlan       = "free plan selected"
	ReasonInactivePlan   = "plan selected without active subscription"
	ReasonNoSubscription = "no subscription"
	ReasonLookupFailed   = "user lookup failed"
)

// Decision результат вычисления доступа. Никогда не сохраняется.
type Decision struct {
	HasAccess  bool       `json:"hasAccess"`
	AccessType AccessType `json:"accessType"`
	Reason     string     `json:"reason"`
}

// UserFinder единственная внешняя зависимость Lookup: чтение одной строки по id.
// Отсутствие строки сообщается ошибкой models.ErrUserNotFound.
type UserFinder interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Resolver вычисляет Decision. Настраивается только адресом суперадминистратора.
type Resolver struct {
	superAdminEmail string
}

// New создаёт Resolver с заданным адресом суперадминистратора.
func New(superAdminEmail string) *Resolver {
	return &Resolver{superAdminEmail: normalizeEmail(superAdminEmail)}
}

// Resolve применяет правила по порядку; срабатывает первое подходящее.
func (r *Resolver) Resolve(user *models.User, now time.Time) Decision {
	if user == nil || user.UUID == "" {
		return Decision{HasAccess: false, AccessType: AccessNone, Reason: ReasonUserNotFound}
	}

	// суперадмин проверяется до неуспешного платежа
	if r.superAdminEmail != "" && normalizeEmail(user.Email) == r.superAdminEmail {
		return Decision{HasAccess: true, AccessType: AccessAdmin, Reason: ReasonSuperAdmin}
	}

	if user.PaymentFailed {
		return Decision{HasAccess: false, AccessType: AccessPaymentFailed, Reason: ReasonPaymentFailed}
	}

	if user.Role.IsAdmin() {
		return Decision{HasAccess: true, AccessType: AccessAdmin, Reason: ReasonAdminRole}
	}

	active := IsSubscriptionActive(user, now)

	if active && user.SubscriptionPlan == models.PlanA7FX {
		return Decision{HasAccess: true, AccessType: AccessA7FXElite, Reason: ReasonElitePlan}
	}
	if user.Role == models.RoleElite {
		return Decision{HasAccess: true, AccessType: AccessA7FXElite, Reason: ReasonEliteRole}
	}

	if active && user.SubscriptionPlan == models.PlanAura {
		return Decision{HasAccess: true, AccessType: AccessAuraFX, Reason: ReasonAuraPlan}
	}
	if user.Role == models.RolePremium {
		return Decision{HasAccess: true, AccessType: AccessAuraFX, Reason: ReasonPremiumRole}
	}

	switch {
	case user.SubscriptionPlan == models.PlanFree:
		return Decision{HasAccess: true, AccessType: AccessFree, Reason: ReasonFreePlan}
	case user.SubscriptionPlan != models.PlanNone:
		return Decision{HasAccess: false, AccessType: AccessNone, Reason: ReasonInactivePlan}
	default:
		return Decision{HasAccess: false, AccessType: AccessNone, Reason: ReasonNoSubscription}
	}
}

// Lookup читает строку пользователя и вычисляет решение.
// Отсутствие строки даёт NONE, любая другая ошибка даёт ERROR без доступа.
func (r *Resolver) Lookup(ctx context.Context, users UserFinder, userUID string, now time.Time) (Decision, *models.User, error) {
	if userUID == "" {
		return r.Resolve(nil, now), nil, nil
	}
	user, err := users.GetUser(ctx, userUID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return r.Resolve(nil, now), nil, nil
		}
		return Decision{HasAccess: false, AccessType: AccessError, Reason: ReasonLookupFailed}, nil, err
	}
	return r.Resolve(user, now), user, nil
}

// IsSubscriptionActive: статус active и срок строго позже now.
func IsSubscriptionActive(user *models.User, now time.Time) bool {
	return user.SubscriptionStatus == models.StatusActive &&
		user.SubscriptionExpiry != nil &&
		user.SubscriptionExpiry.After(now)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
