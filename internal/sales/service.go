package sales

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/platform/kv"
	"github.com/breadline/backoffice/internal/upstream"
)

// CachePolicy decides how long cached reports and point lists live.
type CachePolicy struct {
	// OpenTTL applies to ranges that reach today or later.
	OpenTTL time.Duration
	// ClosedTTL applies to ranges that ended before today.
	ClosedTTL time.Duration
	// PointsTTL bounds the per-session point list.
	PointsTTL time.Duration
}

// DefaultCachePolicy is used for zero fields.
var DefaultCachePolicy = CachePolicy{
	OpenTTL:   5 * time.Minute,
	ClosedTTL: 24 * time.Hour,
	PointsTTL: time.Hour,
}

// TTLFor picks the TTL for a report range.
func (p CachePolicy) TTLFor(rng daterange.Range, today daterange.Date) time.Duration {
	if rng.To.Before(today) {
		return p.ClosedTTL
	}
	return p.OpenTTL
}

// ProductRegistrar records product names seen in receipts.
type ProductRegistrar interface {
	RegisterProducts(ctx context.Context, names []string) error
}

// CacheObserver counts report cache outcomes.
type CacheObserver interface {
	ObserveCache(name string, hit bool)
}

// PointSource caches the point list on the caller's session.
type PointSource interface {
	upstream.SIDHolder
	Points(now time.Time, maxAge time.Duration) ([]string, bool)
	SetPoints(points []string, now time.Time)
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Backend  Backend
	Cache    *kv.Cache
	Days     *DayCache
	Policy   CachePolicy
	MaxDays  int
	Products ProductRegistrar
	Observer CacheObserver
	Logger   *slog.Logger

	// LoadTimeout bounds a shared report load, which outlives its callers.
	LoadTimeout time.Duration
}

// DefaultLoadTimeout applies when ServiceConfig.LoadTimeout is zero.
const DefaultLoadTimeout = 2 * time.Minute

// Service answers sales reports.
type Service struct {
	backend  Backend
	cache    *kv.Cache
	days     *DayCache
	policy   CachePolicy
	loader   Loader
	products ProductRegistrar
	observer CacheObserver
	logger   *slog.Logger
	group    singleflight.Group
	shared   sharedSession
	timeout  time.Duration
	clock    func() time.Time
}

// NewService wires the sales service.
func NewService(cfg ServiceConfig) *Service {
	policy := cfg.Policy
	if policy.OpenTTL <= 0 {
		policy.OpenTTL = DefaultCachePolicy.OpenTTL
	}
	if policy.ClosedTTL <= 0 {
		policy.ClosedTTL = DefaultCachePolicy.ClosedTTL
	}
	if policy.PointsTTL <= 0 {
		policy.PointsTTL = DefaultCachePolicy.PointsTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.LoadTimeout
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	return &Service{
		timeout:  timeout,
		backend:  cfg.Backend,
		cache:    cfg.Cache,
		days:     cfg.Days,
		policy:   policy,
		loader:   Loader{MaxDays: cfg.MaxDays, Logger: logger},
		products: cfg.Products,
		observer: cfg.Observer,
		logger:   logger,
		clock:    func() time.Time { return time.Now() },
	}
}

func (s *Service) today() daterange.Date {
	return daterange.FromTime(s.clock())
}

// Points lists sales points, served from the session while fresh.
func (s *Service) Points(ctx context.Context, src PointSource) ([]string, error) {
	now := s.clock()
	if points, ok := src.Points(now, s.policy.PointsTTL); ok {
		return points, nil
	}
	points, err := s.backend.Points(ctx, src)
	if err != nil {
		return nil, err
	}
	src.SetPoints(points, now)
	return points, nil
}

// Days loads raw per-day batches with an explicit day cap. Nothing is cached
// at this level beyond the per-day receipt cache.
func (s *Service) Days(ctx context.Context, holder upstream.SIDHolder, rng daterange.Range, point string, maxDays int) ([]DaySales, error) {
	loader := s.loader
	loader.MaxDays = maxDays
	return loader.Load(ctx, s.fetcher(holder), rng, point)
}

func (s *Service) fetcher(holder upstream.SIDHolder) DayFetcher {
	base := DayFetcherFunc(func(ctx context.Context, window daterange.Pair, point string) ([]PointSummary, error) {
		return s.backend.FetchDay(ctx, holder, window, point)
	})
	return s.days.Wrap(base)
}

// Report aggregates sales for q. The day cap is enforced before any request.
// Totals are recomputed from items on every read, including cache hits.
func (s *Service) Report(ctx context.Context, holder upstream.SIDHolder, q Query) (Report, error) {
	if err := q.Range.CheckLimit(s.loader.MaxDays); err != nil {
		return Report{}, err
	}
	point := q.Point
	if point == "" {
		point = "*"
	}
	key, err := s.cache.BuildKey(ctx, "report", q.Range.From.String(), q.Range.To.String(), point)
	if err != nil {
		return Report{}, err
	}
	ttl := s.policy.TTLFor(q.Range, s.today())

	type result struct {
		points []PointSummary
		hit    bool
	}
	// The shared load ignores the first caller's cancellation and session.
	s.shared.seed(holder.UpstreamSID())
	ch := s.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		var grouped []PointSummary
		hit, err := s.cache.FetchJSON(loadCtx, key, ttl, &grouped, func(ctx context.Context) (any, error) {
			days, err := s.loader.Load(ctx, s.fetcher(&s.shared), q.Range, q.Point)
			if err != nil {
				return nil, err
			}
			return GroupByPoint(Flatten(days)), nil
		})
		if err != nil {
			return nil, err
		}
		return result{points: grouped, hit: hit}, nil
	})
	var res result
	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return Report{}, out.Err
		}
		res = out.Val.(result)
	}
	if sid := s.shared.UpstreamSID(); sid != "" && sid != holder.UpstreamSID() {
		holder.SetUpstreamSID(sid)
	}
	if s.observer != nil {
		s.observer.ObserveCache("sales_report", res.hit)
	}

	points := make([]PointSummary, 0, len(res.points))
	for _, p := range res.points {
		p.Recompute()
		points = append(points, p)
	}
	report := Report{
		Range:   q.Range,
		Point:   q.Point,
		Summary: Summarize(q.Point, points),
		Points:  points,
		Cached:  res.hit,
	}
	if !res.hit {
		s.registerProducts(ctx, report.Summary)
	}
	return report, nil
}

func (s *Service) registerProducts(ctx context.Context, summary PointSummary) {
	if s.products == nil || len(summary.Items) == 0 {
		return
	}
	names := make([]string, 0, len(summary.Items))
	for _, item := range summary.Items {
		names = append(names, item.Name)
	}
	if err := s.products.RegisterProducts(ctx, names); err != nil {
		s.logger.Warn("register products", slog.Any("error", err))
	}
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) (int64, error) {
	return s.cache.Bump(ctx)
}

// PurgeDays removes per-day receipt cache entries older than the cache's max age.
func (s *Service) PurgeDays(ctx context.Context) (int, error) {
	if s.days == nil {
		return 0, nil
	}
	cutoff := daterange.FromTime(s.clock().Add(-s.days.MaxAge()))
	return s.days.Purge(ctx, cutoff)
}

// sharedSession holds the backend session id used by shared report loads.
type sharedSession struct {
	mu  sync.Mutex
	sid string
}

func (s *sharedSession) UpstreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

func (s *sharedSession) SetUpstreamSID(sid string) {
	s.mu.Lock()
	s.sid = sid
	s.mu.Unlock()
}

// seed adopts a caller's session id while none is held yet.
func (s *sharedSession) seed(sid string) {
	if sid == "" {
		return
	}
	s.mu.Lock()
	if s.sid == "" {
		s.sid = sid
	}
	s.mu.Unlock()
}
