// Package subscription владеет изменениями полей подписки в строке пользователя:
// выбором бесплатного тарифа, выдачей и отзывом доступа администратором,
// последствиями платёжных уведомлений и отметкой истёкших подписок.
// Каждое успешное изменение публикуется как AccessEvent.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/models"
)

// Акторы событий, не связанные с конкретным администратором.
const (
	ActorSelf    = "self"
	ActorWebhook = "webhook"
	ActorSweeper = "sweeper"
)

// Срок оплаченного периода, если платёжное уведомление его не содержит.
const defaultPaidPeriod = 30 * 24 * time.Hour

var (
	// ErrInvalidPlan возвращается при выдаче неплатного или неизвестного тарифа.
	ErrInvalidPlan = errors.New("plan must be aura or a7fx")
	// ErrInvalidDays возвращается при неположительном сроке выдачи.
	ErrInvalidDays = errors.New("days must be positive")
	// ErrUnknownEvent возвращается для неподдерживаемого платёжного события.
	ErrUnknownEvent = errors.New("unknown payment event")
	// ErrDuplicateEvent возвращается для уже обработанного платёжного уведомления.
	ErrDuplicateEvent = errors.New("payment event already processed")
)

// Repository описывает хранилище строк пользователей.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	ApplySubscriptionChange(ctx context.Context, userUID string, change models.SubscriptionChange) (*models.User, error)
	ExpireDue(ctx context.Context, now time.Time) ([]*models.User, error)
}

// Publisher публикует события изменения доступа.
type Publisher interface {
	PublishAccessEvent(ctx context.Context, event models.AccessEvent) error
}

// WebhookLedger помнит идентификаторы обработанных платёжных уведомлений.
type WebhookLedger interface {
	WebhookProcessed(ctx context.Context, id string) (bool, error)
	RecordWebhook(ctx context.Context, id, eventType string, at time.Time) error
}

// EventObserver учитывает результат публикации.
type EventObserver interface {
	ObserveEvent(kind, result string)
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.now = clock }
}

// WithObserver подключает учёт публикаций.
func WithObserver(obs EventObserver) Option {
	return func(s *Service) { s.observer = obs }
}

// WithWebhookLedger включает отбрасывание повторных платёжных уведомлений.
func WithWebhookLedger(l WebhookLedger) Option {
	return func(s *Service) { s.ledger = l }
}

// Service реализует изменения подписки.
type Service struct {
	repo      Repository
	publisher Publisher
	resolver  *entitlement.Resolver
	log       *slog.Logger
	now       func() time.Time
	observer  EventObserver
	ledger    WebhookLedger
}

// New создаёт Service. publisher может быть nil, тогда события не публикуются.
func New(repo Repository, publisher Publisher, resolver *entitlement.Resolver, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		publisher: publisher,
		resolver:  resolver,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StatusView состояние подписки пользователя вместе с решением о доступе.
type StatusView struct {
	HasCommunityAccess bool                   `json:"hasCommunityAccess"`
	AccessType         entitlement.AccessType `json:"accessType"`
	IsActive           bool                   `json:"isActive"`
	Status             models.Status          `json:"status"`
	Plan               models.Plan            `json:"plan,omitempty"`
	Expiry             *time.Time             `json:"expiry,omitempty"`
	PaymentFailed      bool                   `json:"paymentFailed"`
}

// Status возвращает состояние подписки. Отсутствие пользователя сообщается models.ErrUserNotFound.
func (s *Service) Status(ctx context.Context, userUID string) (*StatusView, error) {
	const op = "subscription.Status"

	now := s.now()
	decision, user, err := s.resolver.Lookup(ctx, s.repo, userUID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	return &StatusView{
		HasCommunityAccess: decision.HasAccess,
		AccessType:         decision.AccessType,
		IsActive:           entitlement.IsSubscriptionActive(user, now),
		Status:             user.SubscriptionStatus,
		Plan:               user.SubscriptionPlan,
		Expiry:             user.SubscriptionExpiry,
		PaymentFailed:      user.PaymentFailed,
	}, nil
}

// SelectFree переводит пользователя на бесплатный тариф и возвращает итоговое решение.
// Повторный вызов ничего не меняет. Пользователь, у которого уже есть доступ выше
// бесплатного, остаётся на своём тарифе.
func (s *Service) SelectFree(ctx context.Context, userUID string) (entitlement.Decision, *models.User, error) {
	const op = "subscription.SelectFree"

	now := s.now()
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return entitlement.Decision{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	current := s.resolver.Resolve(user, now)
	if user.SubscriptionPlan == models.PlanFree || entitlement.TierOf(current).Rank() > models.TierFree.Rank() {
		return current, user, nil
	}

	plan := models.PlanFree
	updated, err := s.repo.ApplySubscriptionChange(ctx, userUID, models.SubscriptionChange{Plan: &plan})
	if err != nil {
		return entitlement.Decision{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("free plan selected", sl.UserUID(userUID))
	s.publish(ctx, models.EventFreeSelected, ActorSelf, updated, now)

	return s.resolver.Resolve(updated, now), updated, nil
}

// Grant выдаёт платный тариф на days дней, снимая флаг неуспешного платежа.
func (s *Service) Grant(ctx context.Context, actor, userUID string, plan models.Plan, days int) (*models.User, error) {
	const op = "subscription.Grant"

	if !plan.IsPaid() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidPlan)
	}
	if days <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidDays)
	}

	now := s.now()
	status := models.StatusActive
	expiry := now.Add(time.Duration(days) * 24 * time.Hour)
	failed := false
	user, err := s.repo.ApplySubscriptionChange(ctx, userUID, models.SubscriptionChange{
		Status:        &status,
		Plan:          &plan,
		Expiry:        &expiry,
		PaymentFailed: &failed,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription granted",
		sl.UserUID(userUID),
		slog.String("actor", actor),
		slog.String("plan", string(plan)),
		slog.Int("days", days),
	)
	s.publish(ctx, models.EventGranted, actor, user, now)
	return user, nil
}

// Revoke отменяет подписку: статус cancelled, тариф free, срок очищается.
func (s *Service) Revoke(ctx context.Context, actor, userUID string) (*models.User, error) {
	const op = "subscription.Revoke"

	now := s.now()
	status := models.StatusCancelled
	plan := models.PlanFree
	user, err := s.repo.ApplySubscriptionChange(ctx, userUID, models.SubscriptionChange{
		Status:      &status,
		Plan:        &plan,
		ClearExpiry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription revoked", sl.UserUID(userUID), slog.String("actor", actor))
	s.publish(ctx, models.EventRevoked, actor, user, now)
	return user, nil
}

// ExpireDue отмечает истёкшие подписки и возвращает их количество.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	const op = "subscription.ExpireDue"

	now := s.now()
	users, err := s.repo.ExpireDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	for _, u := range users {
		s.publish(ctx, models.EventExpired, ActorSweeper, u, now)
	}
	return len(users), nil
}

// publish отправляет событие; ошибка публикации не отменяет уже сделанное изменение.
func (s *Service) publish(ctx context.Context, kind models.EventKind, actor string, user *models.User, now time.Time) {
	if s.publisher == nil || user == nil {
		return
	}
	event := models.AccessEvent{
		ID:         uuid.New().String(),
		UserUID:    user.UUID,
		Kind:       kind,
		Actor:      actor,
		Plan:       user.SubscriptionPlan,
		Status:     user.SubscriptionStatus,
		Expiry:     user.SubscriptionExpiry,
		OccurredAt: now.UTC(),
	}
	result := "published"
	if err := s.publisher.PublishAccessEvent(ctx, event); err != nil {
		result = "failed"
		s.log.Error("failed to publish access event",
			sl.UserUID(user.UUID),
			slog.String("kind", string(kind)),
			sl.Err(err),
		)
	}
	if s.observer != nil {
		s.observer.ObserveEvent(string(kind), result)
	}
}
