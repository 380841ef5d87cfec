package models

import "time"

// EventKind тип события изменения доступа.
type EventKind string

// Типы событий изменения доступа.
const (
	EventFreeSelected          EventKind = "free_selected"
	EventGranted               EventKind = "granted"
	EventRevoked               EventKind = "revoked"
	EventPaymentSucceeded      EventKind = "payment_succeeded"
	EventPaymentFailed         EventKind = "payment_failed"
	EventSubscriptionCancelled EventKind = "subscription_cancelled"
	EventExpired               EventKind = "expired"
)

// AccessEvent публикуется в RabbitMQ после каждого изменения подписки
// и сохраняется в журнал access_events.
type AccessEvent struct {
	ID         string     `json:"id"`
	UserUID    string     `json:"user_uid"`
	Kind       EventKind  `json:"kind"`
	Actor      string     `json:"actor"` // user_uid администратора, "self", "webhook" или "sweeper"
	Plan       Plan       `json:"plan,omitempty"`
	Status     Status     `json:"status,omitempty"`
	Expiry     *time.Time `json:"expiry,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
