// Package audit записывает события изменения доступа из очереди в журнал access_events.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/models"
)

// ErrMalformedEvent означает, что сообщение не удалось разобрать как AccessEvent.
var ErrMalformedEvent = errors.New("malformed access event")

// EventRepository сохраняет события.
type EventRepository interface {
	InsertAccessEvent(ctx context.Context, ev models.AccessEvent) error
}

// EventObserver учитывает обработанные события.
type EventObserver interface {
	ObserveEvent(kind, result string)
}

// Recorder обрабатывает сообщения очереди access.audit.
type Recorder struct {
	repo     EventRepository
	log      *slog.Logger
	observer EventObserver
}

// NewRecorder создаёт Recorder. observer может быть nil.
func NewRecorder(repo EventRepository, log *slog.Logger, observer EventObserver) *Recorder {
	return &Recorder{
		repo:     repo,
		log:      log,
		observer: observer,
	}
}

// HandleMessage сохраняет одно событие. Неразборчивые сообщения отбрасываются
// без ошибки, иначе очередь возвращала бы их бесконечно; ошибка хранилища
// возвращается, чтобы сообщение было доставлено повторно.
func (r *Recorder) HandleMessage(ctx context.Context, body []byte) error {
	const op = "audit.HandleMessage"

	ev, err := decode(body)
	if err != nil {
		r.log.Error("dropping access event", sl.Err(err))
		r.observe("unknown", "dropped")
		return nil
	}

	if err := r.repo.InsertAccessEvent(ctx, ev); err != nil {
		r.observe(string(ev.Kind), "failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	r.log.Info("access event recorded",
		sl.UserUID(ev.UserUID),
		slog.String("kind", string(ev.Kind)),
		slog.String("actor", ev.Actor),
	)
	r.observe(string(ev.Kind), "recorded")
	return nil
}

func decode(body []byte) (models.AccessEvent, error) {
	var ev models.AccessEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if ev.UserUID == "" || ev.Kind == "" || ev.OccurredAt.IsZero() {
		return ev, fmt.Errorf("%w: missing user_uid, kind or occurred_at", ErrMalformedEvent)
	}
	return ev, nil
}

func (r *Recorder) observe(kind, result string) {
	if r.observer != nil {
		r.observer.ObserveEvent(kind, result)
	}
}
