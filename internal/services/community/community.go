// Package community отдаёт каталог каналов сообщества с учётом уровня доступа.
package community

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/models"
)

const channelsCacheKey = "community:channels"

// ChannelRepository читает каталог каналов.
type ChannelRepository interface {
	ListChannels(ctx context.Context) ([]models.Channel, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service отдаёт каналы, видимые пользователю.
type Service struct {
	repo  ChannelRepository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
	group singleflight.Group
}

// New создаёт Service. cache может быть nil, тогда каталог читается из базы на каждый запрос.
func New(repo ChannelRepository, cache Cache, ttl time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

// Channels возвращает весь каталог. Параллельные промахи кэша приводят к одному чтению базы;
// ошибки кэша только логируются.
func (s *Service) Channels(ctx context.Context) ([]models.Channel, error) {
	const op = "community.Channels"

	if s.cache != nil {
		var cached []models.Channel
		found, err := s.cache.Get(ctx, channelsCacheKey, &cached)
		if err != nil {
			s.log.Warn("failed to read channels from cache", sl.Err(err))
		}
		if found {
			return cached, nil
		}
	}

	v, err, _ := s.group.Do(channelsCacheKey, func() (any, error) {
		channels, err := s.repo.ListChannels(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, channelsCacheKey, channels, s.ttl); err != nil {
				s.log.Warn("failed to cache channels", sl.Err(err))
			}
		}
		return channels, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v.([]models.Channel), nil
}

// VisibleChannels возвращает каналы, доступные по решению d.
func (s *Service) VisibleChannels(ctx context.Context, d entitlement.Decision) ([]models.Channel, error) {
	channels, err := s.Channels(ctx)
	if err != nil {
		return nil, err
	}
	return entitlement.VisibleChannels(d, channels), nil
}

// InvalidateChannels сбрасывает кэш каталога.
func (s *Service) InvalidateChannels(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, channelsCacheKey)
}
