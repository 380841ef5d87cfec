// Package main Community Access API
//
// @title           Community Access API
// @version         1.0
// @description     Регистрация, вычисление прав доступа и закрытые каналы торгового сообщества
//
// @host      localhost:8080
// @BasePath  /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	// Регистрация описания API для /docs.
	_ "github.com/magabrotheeeer/community-access/docs"
	communityapi "github.com/magabrotheeeer/community-access/internal/app/community-api"
	"github.com/magabrotheeeer/community-access/internal/config"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env)

	logger.Info("starting community-api", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := communityapi.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("community-api stopped gracefully")
}
