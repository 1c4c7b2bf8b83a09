package sales

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/platform/kv"
	"github.com/breadline/backoffice/internal/upstream"
)

// Backend is the receipts source, bound to a caller's backend session.
type Backend interface {
	Points(ctx context.Context, holder upstream.SIDHolder) ([]string, error)
	FetchDay(ctx context.Context, holder upstream.SIDHolder, window daterange.Pair, point string) ([]PointSummary, error)
}

// UpstreamBackend adapts the REST client.
type UpstreamBackend struct {
	Client *upstream.Client
}

// Points implements Backend.
func (b UpstreamBackend) Points(ctx context.Context, holder upstream.SIDHolder) ([]string, error) {
	var names []string
	err := b.Client.WithSession(ctx, holder, func(ctx context.Context, sid string) error {
		points, err := b.Client.Points(ctx, sid)
		if err != nil {
			return err
		}
		names = make([]string, 0, len(points))
		seen := make(map[string]struct{}, len(points))
		for _, p := range points {
			if p.PointName == "" {
				continue
			}
			if _, dup := seen[p.PointName]; dup {
				continue
			}
			seen[p.PointName] = struct{}{}
			names = append(names, p.PointName)
		}
		return nil
	})
	return names, err
}

// FetchDay implements Backend.
func (b UpstreamBackend) FetchDay(ctx context.Context, holder upstream.SIDHolder, window daterange.Pair, point string) ([]PointSummary, error) {
	var out []PointSummary
	err := b.Client.WithSession(ctx, holder, func(ctx context.Context, sid string) error {
		receipts, err := b.Client.Receipts(ctx, sid, window, point)
		if err != nil {
			return err
		}
		out = FromReceipts(receipts)
		return nil
	})
	return out, err
}

// FromReceipts converts backend receipts, recomputing totals from items.
func FromReceipts(receipts []upstream.Receipt) []PointSummary {
	out := make([]PointSummary, 0, len(receipts))
	for _, r := range receipts {
		summary := PointSummary{PointName: r.PointName, Items: make([]LineItem, 0, len(r.Items))}
		for _, it := range r.Items {
			summary.Items = append(summary.Items, LineItem{Name: it.Name, Quantity: it.Quantity, TotalAmount: it.TotalSum})
		}
		summary.Recompute()
		out = append(out, summary)
	}
	return out
}

const dayIndexSet = "receipts:days"

// DayCache keeps closed days' receipts so repeated reports do not refetch
// them. Today and later are never cached because they are still changing.
type DayCache struct {
	store  kv.Store
	index  kv.Index
	maxAge time.Duration
	logger *slog.Logger
	today  func() daterange.Date
}

// NewDayCache builds a DayCache. index may be nil, in which case Purge is a no-op
// and entries only expire by TTL.
func NewDayCache(store kv.Store, index kv.Index, maxAge time.Duration, logger *slog.Logger) *DayCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &DayCache{
		store:  store,
		index:  index,
		maxAge: maxAge,
		logger: logger,
		today:  func() daterange.Date { return daterange.FromTime(time.Now()) },
	}
}

func dayKey(window daterange.Pair, point string) string {
	if point == "" {
		point = "*"
	}
	return "receipts:" + window.From.String() + ":" + window.To.String() + ":" + point
}

// Wrap decorates fetch with the cache.
func (c *DayCache) Wrap(fetch DayFetcher) DayFetcher {
	if c == nil || c.store == nil {
		return fetch
	}
	return DayFetcherFunc(func(ctx context.Context, window daterange.Pair, point string) ([]PointSummary, error) {
		closed := !window.To.After(c.today())
		key := dayKey(window, point)
		if closed {
			var cached []PointSummary
			err := kv.GetJSON(ctx, c.store, key, &cached)
			if err == nil {
				return cached, nil
			}
			if !errors.Is(err, kv.ErrMiss) {
				c.logger.Warn("read day cache", slog.String("key", key), slog.Any("error", err))
			}
		}
		batch, err := fetch.FetchDay(ctx, window, point)
		if err != nil || !closed {
			return batch, err
		}
		if err := kv.SetJSON(ctx, c.store, key, batch, c.maxAge); err != nil {
			c.logger.Warn("write day cache", slog.String("key", key), slog.Any("error", err))
			return batch, nil
		}
		if c.index != nil {
			if err := c.index.Track(ctx, dayIndexSet, key, window.From.Time().Unix()); err != nil {
				c.logger.Warn("index day cache", slog.String("key", key), slog.Any("error", err))
			}
		}
		return batch, nil
	})
}

// Purge drops cached days older than cutoff and reports how many went.
func (c *DayCache) Purge(ctx context.Context, cutoff daterange.Date) (int, error) {
	if c == nil || c.index == nil {
		return 0, nil
	}
	keys, err := c.index.Older(ctx, dayIndexSet, cutoff.Time().Unix())
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	if err := c.index.Untrack(ctx, dayIndexSet, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// MaxAge is how long a closed day stays cached.
func (c *DayCache) MaxAge() time.Duration {
	if c == nil {
		return 0
	}
	return c.maxAge
}
