// Package expirysweeper собирает фоновый процесс, отмечающий истёкшие подписки.
package expirysweeper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/community-access/internal/config"
	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/services/subscription"
	"github.com/magabrotheeeer/community-access/internal/services/sweeper"
	"github.com/magabrotheeeer/community-access/internal/storage"
)

// App представляет приложение планировщика.
type App struct {
	sweeper *sweeper.Service
	db      *storage.Storage
	conn    *amqp.Connection
	ch      *amqp.Channel
	logger  *slog.Logger
}

// New создаёт приложение: база, брокер для событий expired и сервис подписок.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "expirysweeper.New"

	db, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AccessExchange, rabbitmq.GetAccessQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	subs := subscription.New(db, rabbitmq.NewEventPublisher(ch), entitlement.New(cfg.SuperAdminEmail), logger)

	return &App{
		sweeper: sweeper.New(subs, cfg.Sweeper.Interval, logger),
		db:      db,
		conn:    conn,
		ch:      ch,
		logger:  logger,
	}, nil
}

// Run запускает планировщик до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.sweeper.Run(ctx)

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
	return nil
}
