package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/breadline/backoffice/internal/daterange"
	jobmetrics "github.com/breadline/backoffice/internal/jobs"
	"github.com/breadline/backoffice/internal/sales"
	"github.com/breadline/backoffice/internal/upstream"
)

const defaultWarmupDays = 2

// Reporter is the slice of the sales service the warm-up needs.
type Reporter interface {
	Report(ctx context.Context, holder upstream.SIDHolder, q sales.Query) (sales.Report, error)
}

// SalesWarmupJob loads single-day sales reports so the first dashboard hit
// of the morning is served from cache.
type SalesWarmupJob struct {
	Sales   Reporter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
	session workerSession
}

// NewSalesWarmupJob wires dependencies for the warm-up handler.
func NewSalesWarmupJob(reporter Reporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *SalesWarmupJob {
	return &SalesWarmupJob{
		Sales:   reporter,
		Logger:  logger,
		Metrics: metrics,
		clock:   time.Now,
	}
}

// Handle processes sales warm-up tasks.
func (j *SalesWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sales == nil {
		return errors.New("sales warmup: handler not configured")
	}
	var payload SalesWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Days < 0 || payload.Days > daterange.MaxFanoutDays {
		return asynq.SkipRetry
	}
	if payload.Days == 0 {
		payload.Days = defaultWarmupDays
	}

	tracker := j.metrics().Track(TaskSalesWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("days", payload.Days))
	if payload.Point != "" {
		logger = logger.With(slog.String("point", payload.Point))
	}
	logger.Info("starting sales warmup")

	start := time.Now()
	today := daterange.FromTime(j.now())
	warmed := 0
	for offset := payload.Days - 1; offset >= 0; offset-- {
		day := today.AddDays(-offset)
		report, err := j.Sales.Report(ctx, &j.session, sales.Query{Range: daterange.SingleDay(day), Point: payload.Point})
		if err != nil {
			resultErr = err
			logger.Error("warm sales day", slog.String("day", day.String()), slog.Any("error", err))
			return resultErr
		}
		if !report.Cached {
			warmed++
		}
	}
	j.metrics().AddItems(TaskSalesWarmup, warmed)

	logger.Info("completed sales warmup", slog.Int("warmed", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *SalesWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSalesWarmup))
	}
	return slog.Default().With(slog.String("job", TaskSalesWarmup))
}

func (j *SalesWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SalesWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}

// workerSession keeps the backend session id across runs of one worker.
type workerSession struct {
	mu  sync.Mutex
	sid string
}

func (s *workerSession) UpstreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

func (s *workerSession) SetUpstreamSID(sid string) {
	s.mu.Lock()
	s.sid = sid
	s.mu.Unlock()
}
