package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/models"
)

// Типы платёжных уведомлений.
const (
	PaymentSucceeded      = "payment.succeeded"
	PaymentFailed         = "payment.failed"
	SubscriptionCancelled = "subscription.cancelled"
)

// PaymentEvent разобранное платёжное уведомление.
type PaymentEvent struct {
	ID        string // идентификатор уведомления у платёжной системы, может быть пустым
	Type      string
	UserUID   string
	Plan      models.Plan
	PeriodEnd *time.Time
}

// ApplyPaymentEvent применяет последствия платёжного уведомления к строке пользователя.
//
// payment.succeeded активирует подписку до PeriodEnd (по умолчанию на 30 дней)
// и снимает флаг неуспешного платежа; тариф берётся из события или остаётся прежним.
// payment.failed только выставляет флаг. subscription.cancelled переводит статус в cancelled.
// Уведомление с уже обработанным ID отклоняется с ErrDuplicateEvent, строка не меняется.
func (s *Service) ApplyPaymentEvent(ctx context.Context, ev PaymentEvent) (*models.User, error) {
	const op = "subscription.ApplyPaymentEvent"

	now := s.now()
	if s.ledger != nil && ev.ID != "" {
		seen, err := s.ledger.WebhookProcessed(ctx, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if seen {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrDuplicateEvent, ev.ID)
		}
	}
	var (
		change models.SubscriptionChange
		kind   models.EventKind
	)
	switch ev.Type {
	case PaymentSucceeded:
		plan := ev.Plan
		if plan == models.PlanNone {
			current, err := s.repo.GetUser(ctx, ev.UserUID)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			plan = current.SubscriptionPlan
		}
		if !plan.IsPaid() {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidPlan)
		}
		status := models.StatusActive
		expiry := now.Add(defaultPaidPeriod)
		if ev.PeriodEnd != nil && ev.PeriodEnd.After(now) {
			expiry = *ev.PeriodEnd
		}
		failed := false
		change = models.SubscriptionChange{Status: &status, Plan: &plan, Expiry: &expiry, PaymentFailed: &failed}
		kind = models.EventPaymentSucceeded
	case PaymentFailed:
		failed := true
		change = models.SubscriptionChange{PaymentFailed: &failed}
		kind = models.EventPaymentFailed
	case SubscriptionCancelled:
		status := models.StatusCancelled
		change = models.SubscriptionChange{Status: &status}
		kind = models.EventSubscriptionCancelled
	default:
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownEvent, ev.Type)
	}

	user, err := s.repo.ApplySubscriptionChange(ctx, ev.UserUID, change)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("payment event applied", sl.UserUID(ev.UserUID), slog.String("type", ev.Type))
	if s.ledger != nil && ev.ID != "" {
		if err := s.ledger.RecordWebhook(ctx, ev.ID, ev.Type, now); err != nil {
			s.log.Warn("failed to record payment event", slog.String("event_id", ev.ID), sl.Err(err))
		}
	}
	s.publish(ctx, kind, ActorWebhook, user, now)
	return user, nil
}
