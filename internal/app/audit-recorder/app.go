// Package auditrecorder собирает потребителя очереди access.audit,
// который записывает события изменения доступа в журнал.
package auditrecorder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/community-access/internal/config"
	"github.com/magabrotheeeer/community-access/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/services/audit"
	"github.com/magabrotheeeer/community-access/internal/storage"
)

// App представляет приложение записи журнала.
type App struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	db       *storage.Storage
	recorder *audit.Recorder
	workers  int
	logger   *slog.Logger
}

// New подключается к базе и брокеру.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "auditrecorder.New"

	db, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AccessExchange, rabbitmq.GetAccessQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		conn:     conn,
		ch:       ch,
		db:       db,
		recorder: audit.NewRecorder(db, logger, nil),
		workers:  cfg.RabbitMQ.Workers,
		logger:   logger,
	}, nil
}

// Run потребляет очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumeMessages(ctx, a.ch, rabbitmq.AuditQueue, a.workers, a.logger, a.recorder.HandleMessage)
	if err != nil {
		a.logger.Error("failed to start audit consumer", sl.Err(err))
		a.close()
		return err
	}
	a.logger.Info("audit recorder started", slog.String("queue", rabbitmq.AuditQueue), slog.Int("workers", a.workers))

	<-ctx.Done()
	a.logger.Info("audit recorder shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
