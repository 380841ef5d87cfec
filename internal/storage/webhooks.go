package storage

import (
	"context"
	"fmt"
	"time"
)

// WebhookProcessed сообщает, записано ли уже уведомление с этим id.
func (s *Storage) WebhookProcessed(ctx context.Context, id string) (bool, error) {
	const op = "storage.WebhookProcessed"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var n int
	query := s.rebind(`SELECT COUNT(*) FROM webhook_events WHERE id = ?`)
	if err := s.DB.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// RecordWebhook запоминает обработанное уведомление. Повторная запись не ошибка.
func (s *Storage) RecordWebhook(ctx context.Context, id, eventType string, at time.Time) error {
	const op = "storage.RecordWebhook"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO webhook_events (id, type, processed_at) VALUES (?, ?, ?)`)
	if _, err := s.DB.ExecContext(ctx, query, id, eventType, at.UTC()); err != nil {
		if isDuplicate(err) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
