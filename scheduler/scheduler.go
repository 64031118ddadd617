// Package scheduler runs periodic background jobs.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job is one pass of a periodic task.
type Job func(ctx context.Context) error

// Every runs job once immediately and then on every tick until ctx is done.
// A failed pass is logged and the loop carries on. It always returns nil so it
// can be handed straight to an errgroup.
func Every(ctx context.Context, interval time.Duration, name string, logger *slog.Logger, job Job) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger = logger.With(slog.String("job", name))
	logger.Info("Scheduler started", slog.Duration("interval", interval))

	run := func() {
		if err := job(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Scheduler: run failed", slog.Any("error", err))
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			run()
		}
	}
}
