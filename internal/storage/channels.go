package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/community-access/internal/models"
)

// ListChannels возвращает все каналы сообщества в порядке отображения.
func (s *Storage) ListChannels(ctx context.Context) ([]models.Channel, error) {
	const op = "storage.ListChannels"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, description, min_tier, position FROM channels ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	channels := make([]models.Channel, 0)
	for rows.Next() {
		var (
			ch   models.Channel
			tier string
		)
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description, &tier, &ch.Position); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ch.MinTier = models.Tier(tier)
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return channels, nil
}
