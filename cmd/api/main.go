package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/api"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/app"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/config"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/thumbnail"
)

func main() {
	cfg := config.Load()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("api server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	// Nothing else drains an in-process queue.
	if cfg.QueueBackend == "memory" {
		go func() {
			if err := (&thumbnail.Worker{Jobs: stack.Jobs, Logger: logger}).Run(ctx); err != nil {
				logger.Warn("in-process thumbnail worker failed", "error", err)
			}
		}()
	}

	deps := api.Deps{
		Users:           stack.Users,
		Groups:          stack.Groups,
		Messages:        stack.Messages,
		Assignments:     stack.Assignments,
		Polls:           stack.Polls,
		Hub:             stack.Hub,
		Issuer:          stack.Issuer,
		Files:           stack.LocalFiles,
		Env:             cfg.Env,
		CORSOrigin:      cfg.CORSOrigin,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          logger,
	}
	if stack.DB != nil {
		deps.Store = stack.DB
	}
	if stack.Redis != nil {
		deps.Redis = stack.Redis
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort, "env", cfg.Env, "store", cfg.StoreBackend, "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", "error", err)
	}
	logger.Info("server exited")
	return nil
}
