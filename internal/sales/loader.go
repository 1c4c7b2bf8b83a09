package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/breadline/backoffice/internal/daterange"
)

// DayFetcher retrieves one half-open window of receipts. Retrying is the
// fetcher's business; an error returned here is final.
type DayFetcher interface {
	FetchDay(ctx context.Context, window daterange.Pair, point string) ([]PointSummary, error)
}

// DayFetcherFunc adapts a function to DayFetcher.
type DayFetcherFunc func(ctx context.Context, window daterange.Pair, point string) ([]PointSummary, error)

// FetchDay implements DayFetcher.
func (f DayFetcherFunc) FetchDay(ctx context.Context, window daterange.Pair, point string) ([]PointSummary, error) {
	return f(ctx, window, point)
}

// Loader fans a range out into sequential per-day fetches.
type Loader struct {
	MaxDays int
	Logger  *slog.Logger
}

// Load fetches every day of rng in ascending order, one request at a time.
// The day cap is checked before the first request. The first failed day
// aborts the load with ErrFetchFailed. Cancellation and deadline errors are
// returned as they are.
func (l Loader) Load(ctx context.Context, fetcher DayFetcher, rng daterange.Range, point string) ([]DaySales, error) {
	if err := rng.CheckLimit(l.MaxDays); err != nil {
		return nil, err
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	days := make([]DaySales, 0, rng.Days())
	for window := range rng.Pairs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := fetcher.FetchDay(ctx, window, point)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", window.From, err)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, window.From, err)
		}
		if len(batch) == 0 {
			logger.Debug("no receipts for day", slog.String("day", window.From.String()), slog.String("point", point))
		}
		days = append(days, DaySales{Day: window.From, Points: batch})
	}
	return days, nil
}
