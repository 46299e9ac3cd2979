package thumbnail

import (
	"context"
	"log/slog"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/metrics"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/queue"
)

// Worker consumes thumbnail jobs. Failed jobs are logged and dropped.
type Worker struct {
	Jobs   queue.Queue
	Logger *slog.Logger
}

// Run processes jobs until ctx is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	messages, err := w.Jobs.Consume(ctx)
	if err != nil {
		return err
	}
	logger.Info("thumbnail worker started")
	for msg := range messages {
		w.handle(logger, msg)
	}
	logger.Info("thumbnail worker stopped")
	return nil
}

func (w *Worker) handle(logger *slog.Logger, msg queue.Message) {
	if msg.Type != queue.TypeThumbnail {
		metrics.JobsProcessed.WithLabelValues(msg.Type, "skipped").Inc()
		return
	}
	src := string(msg.Body)
	dst, err := Generate(src)
	if err != nil {
		metrics.JobsProcessed.WithLabelValues(msg.Type, "failed").Inc()
		logger.Warn("thumbnail failed", "path", src, "error", err)
		return
	}
	metrics.JobsProcessed.WithLabelValues(msg.Type, "ok").Inc()
	logger.Debug("thumbnail written", "path", dst)
}
