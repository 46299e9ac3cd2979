package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/app"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/config"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/thumbnail"
)

// Worker consumes upload jobs and renders image thumbnails.
func main() {
	cfg := config.Load()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if cfg.QueueBackend == "memory" {
		logger.Error("the memory queue only lives inside the API process; use QUEUE_BACKEND=redis or nats")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := app.OpenQueue(cfg, logger)
	if err != nil {
		logger.Error("queue connect failed", "error", err)
		os.Exit(1)
	}
	defer stack.Close()

	w := &thumbnail.Worker{Jobs: stack.Jobs, Logger: logger}
	if err := w.Run(ctx); err != nil {
		logger.Error("worker failed", "error", err)
	}
}
