package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	auditrecorder "github.com/magabrotheeeer/community-access/internal/app/audit-recorder"
	"github.com/magabrotheeeer/community-access/internal/config"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env)

	logger.Info("starting audit-recorder", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := auditrecorder.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("audit-recorder stopped gracefully")
}
