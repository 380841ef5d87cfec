package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/community-access/internal/models"
)

// InsertAccessEvent добавляет событие в журнал. Повторная доставка события
// с тем же ID не считается ошибкой.
func (s *Storage) InsertAccessEvent(ctx context.Context, ev models.AccessEvent) error {
	const op = "storage.InsertAccessEvent"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	query := s.rebind(`INSERT INTO access_events (id, user_id, kind, actor, plan, status, expiry, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.DB.ExecContext(ctx, query,
		ev.ID, ev.UserUID, string(ev.Kind), ev.Actor, nullString(string(ev.Plan)),
		nullString(string(ev.Status)), nullTime(ev.Expiry), ev.OccurredAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListAccessEvents возвращает последние события пользователя, новые первыми.
func (s *Storage) ListAccessEvents(ctx context.Context, userUID string, limit int) ([]models.AccessEvent, error) {
	const op = "storage.ListAccessEvents"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	query := s.rebind(`SELECT id, user_id, kind, actor, plan, status, expiry, occurred_at
		FROM access_events WHERE user_id = ? ORDER BY occurred_at DESC, id LIMIT ?`)
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	events := make([]models.AccessEvent, 0)
	for rows.Next() {
		var (
			ev           models.AccessEvent
			kind         string
			plan, status sql.NullString
			expiry       sql.NullTime
		)
		if err := rows.Scan(&ev.ID, &ev.UserUID, &kind, &ev.Actor, &plan, &status, &expiry, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ev.Kind = models.EventKind(kind)
		ev.Plan = models.ParsePlan(plan.String)
		if status.Valid {
			ev.Status = models.ParseStatus(status.String)
		}
		if expiry.Valid {
			t := expiry.Time.UTC()
			ev.Expiry = &t
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}
