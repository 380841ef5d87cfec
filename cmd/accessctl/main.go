package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/community-access/internal/accessctl"
	"github.com/magabrotheeeer/community-access/internal/config"
	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/services/subscription"
	"github.com/magabrotheeeer/community-access/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := accessctl.NewRootCommand(open).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// open подключает базу и, если брокер доступен, публикацию событий.
// Без брокера изменения всё равно применяются, событие только логируется как неотправленное.
func open(ctx context.Context) (*accessctl.Deps, func() error, error) {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{db.Close}

	var publisher subscription.Publisher
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, 1, 0)
	if err != nil {
		logger.Warn("rabbitmq unavailable, access events will not be published", sl.Err(err))
	} else {
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AccessExchange, rabbitmq.GetAccessQueues())
		if err != nil {
			_ = conn.Close()
			_ = db.Close()
			return nil, nil, err
		}
		publisher = rabbitmq.NewEventPublisher(ch)
		closers = append([]func() error{ch.Close, conn.Close}, closers...)
	}

	resolver := entitlement.New(cfg.SuperAdminEmail)
	deps := &accessctl.Deps{
		Users:         db,
		Resolver:      resolver,
		Subscriptions: subscription.New(db, publisher, resolver, logger),
		Events:        db,
	}
	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return deps, closeAll, nil
}
