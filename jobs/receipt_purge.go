package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/breadline/backoffice/internal/jobs"
)

// DayPurger removes stale per-day receipt cache entries.
type DayPurger interface {
	PurgeDays(ctx context.Context) (int, error)
}

// ReceiptPurgeJob trims the per-day receipt cache.
type ReceiptPurgeJob struct {
	Sales   DayPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReceiptPurgeJob wires dependencies for the purge handler.
func NewReceiptPurgeJob(purger DayPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReceiptPurgeJob {
	return &ReceiptPurgeJob{Sales: purger, Logger: logger, Metrics: metrics}
}

// Handle processes receipt cache purge tasks.
func (j *ReceiptPurgeJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Sales == nil {
		return errors.New("receipt purge: handler not configured")
	}
	tracker := j.metrics().Track(TaskReceiptCachePurge)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	removed, err := j.Sales.PurgeDays(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("purge receipt cache", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddItems(TaskReceiptCachePurge, removed)
	j.logger().Info("purged receipt cache", slog.Int("removed", removed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *ReceiptPurgeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReceiptCachePurge))
	}
	return slog.Default().With(slog.String("job", TaskReceiptCachePurge))
}

func (j *ReceiptPurgeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
