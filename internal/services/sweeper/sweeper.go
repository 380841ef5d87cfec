// Package sweeper периодически отмечает истёкшие подписки.
//
// Решения о доступе от него не зависят: резолвер сам сравнивает срок подписки
// с текущим временем. Sweeper лишь приводит статус в строке к фактическому
// и порождает события expired для журнала.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/community-access/internal/lib/sl"
)

// Expirer отмечает истёкшие подписки.
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// Service запускает Expirer по расписанию.
type Service struct {
	expirer  Expirer
	interval time.Duration
	log      *slog.Logger
}

// New создаёт Service.
func New(expirer Expirer, interval time.Duration, log *slog.Logger) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{
		expirer:  expirer,
		interval: interval,
		log:      log,
	}
}

// Run выполняет проход сразу и затем раз в interval, пока не отменён ctx.
func (s *Service) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход и возвращает число отмеченных подписок.
func (s *Service) RunOnce(ctx context.Context) int {
	s.log.Info("starting expiry sweep")
	n, err := s.expirer.ExpireDue(ctx)
	if err != nil {
		s.log.Error("failed to expire subscriptions", sl.Err(err))
		return 0
	}
	if n == 0 {
		s.log.Info("no expired subscriptions found")
		return 0
	}
	s.log.Info("expired subscriptions marked", slog.Int("count", n))
	return n
}
