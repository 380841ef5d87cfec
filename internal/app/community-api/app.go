package communityapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/community-access/internal/cache"
	"github.com/magabrotheeeer/community-access/internal/config"
	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/http/handlers/health"
	"github.com/magabrotheeeer/community-access/internal/lib/jwt"
	"github.com/magabrotheeeer/community-access/internal/lib/metrics"
	"github.com/magabrotheeeer/community-access/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/migrations"
	"github.com/magabrotheeeer/community-access/internal/services/account"
	"github.com/magabrotheeeer/community-access/internal/services/community"
	"github.com/magabrotheeeer/community-access/internal/services/subscription"
	"github.com/magabrotheeeer/community-access/internal/storage"
)

// App HTTP API сообщества вместе с его соединениями.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New открывает соединения, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "communityapi.New"

	db, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := migrations.Run(db.DB, cfg.Storage.Driver, cfg.Storage.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: cache not initialized: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AccessExchange, rabbitmq.GetAccessQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	communitySvc := community.New(db, cacheRedis, cfg.ChannelCacheTTL, logger)
	// миграции могли изменить каталог, закэшированный прошлым запуском
	if err := communitySvc.InvalidateChannels(ctx); err != nil {
		logger.Warn("failed to reset channel cache", sl.Err(err))
	}

	m := metrics.New()
	resolver := entitlement.New(cfg.SuperAdminEmail)
	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := NewRouter(Deps{
		Logger:   logger,
		Tokens:   tokens,
		Users:    db,
		Resolver: resolver,
		Clock:    time.Now,
		Accounts: account.New(db, tokens, logger),
		Subscriptions: subscription.New(db, rabbitmq.NewEventPublisher(ch), resolver, logger,
			subscription.WithObserver(m),
			subscription.WithWebhookLedger(db),
		),
		Community: communitySvc,
		Metrics:   m,
		Health: map[string]health.Pinger{
			"database": db,
			"cache": health.PingFunc(func(ctx context.Context) error {
				return cacheRedis.Db.Ping(ctx).Err()
			}),
		},
		Redirect:      cfg.Redirect,
		WebhookSecret: cfg.Webhook.Secret,
		RateLimit:     cfg.RateLimit,
		RateWindow:    cfg.RateWindow,
		Production:    cfg.Env == "prod",
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run обслуживает запросы до отмены ctx и затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
