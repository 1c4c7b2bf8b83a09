package sales

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/platform/kv"
	"github.com/breadline/backoffice/internal/session"
	"github.com/breadline/backoffice/internal/upstream"
)

type fakeBackend struct {
	points     []string
	pointCalls int
	fetches    []string
	data       map[string][]PointSummary
	err        error
}

func (f *fakeBackend) Points(ctx context.Context, holder upstream.SIDHolder) ([]string, error) {
	f.pointCalls++
	holder.SetUpstreamSID("sid")
	return f.points, nil
}

func (f *fakeBackend) FetchDay(ctx context.Context, holder upstream.SIDHolder, window daterange.Pair, point string) ([]PointSummary, error) {
	f.fetches = append(f.fetches, window.From.String())
	if f.err != nil {
		return nil, f.err
	}
	return f.data[window.From.String()], nil
}

type fakeRegistrar struct{ names []string }

func (f *fakeRegistrar) RegisterProducts(ctx context.Context, names []string) error {
	f.names = append(f.names, names...)
	return nil
}

func newTestService(t *testing.T, backend Backend, registrar ProductRegistrar) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := kv.NewRedisStore(client, "")
	days := NewDayCache(store, store, 90*24*time.Hour, nil)
	days.today = func() daterange.Date { return daterange.MustParse("2025-04-10") }
	svc := NewService(ServiceConfig{
		Backend:  backend,
		Cache:    kv.NewCache(store, "sales"),
		Days:     days,
		MaxDays:  daterange.MaxFanoutDays,
		Products: registrar,
	})
	svc.clock = func() time.Time { return time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC) }
	return svc, mr
}

func sampleData() map[string][]PointSummary {
	return map[string][]PointSummary{
		"2025-04-01": {
			{PointName: "A", Items: []LineItem{{Name: "Bread", Quantity: 2, TotalAmount: 200}}},
			{PointName: "B", Items: []LineItem{{Name: "Cake", Quantity: 1, TotalAmount: 500}}},
		},
		"2025-04-02": {
			{PointName: "A", Items: []LineItem{{Name: "Bread", Quantity: 3, TotalAmount: 300}}},
		},
	}
}

func TestReportAggregatesAndCaches(t *testing.T) {
	backend := &fakeBackend{data: sampleData()}
	registrar := &fakeRegistrar{}
	svc, _ := newTestService(t, backend, registrar)
	ctx := context.Background()
	sess := &session.Session{ID: "s1"}

	rng, err := daterange.ParseRange("2025-04-01", "2025-04-02")
	require.NoError(t, err)

	report, err := svc.Report(ctx, sess, Query{Range: rng})
	require.NoError(t, err)
	assert.False(t, report.Cached)
	assert.Equal(t, AllPointsName, report.Summary.PointName)
	assert.Equal(t, int64(1000), report.Summary.TotalAmount)
	require.Len(t, report.Points, 2)
	assert.Equal(t, int64(500), report.Points[0].TotalAmount)
	assert.Equal(t, []string{"2025-04-01", "2025-04-02"}, backend.fetches)
	assert.ElementsMatch(t, []string{"Bread", "Cake"}, registrar.names)

	report, err = svc.Report(ctx, sess, Query{Range: rng})
	require.NoError(t, err)
	assert.True(t, report.Cached)
	assert.Len(t, backend.fetches, 2)
	assert.Equal(t, int64(1000), report.Summary.TotalAmount)
}

func TestReportForPoint(t *testing.T) {
	backend := &fakeBackend{data: sampleData()}
	svc, _ := newTestService(t, backend, nil)

	rng, err := daterange.ParseRange("2025-04-01", "2025-04-02")
	require.NoError(t, err)
	report, err := svc.Report(context.Background(), &session.Session{ID: "s1"}, Query{Range: rng, Point: "A"})
	require.NoError(t, err)
	assert.Equal(t, PointSummary{PointName: "A", Items: []LineItem{{Name: "Bread", Quantity: 5, TotalAmount: 500}}, TotalAmount: 500}, report.Summary)
}

func TestInvalidateForcesReload(t *testing.T) {
	backend := &fakeBackend{data: sampleData()}
	svc, mr := newTestService(t, backend, nil)
	ctx := context.Background()
	rng, err := daterange.ParseRange("2025-04-01", "2025-04-01")
	require.NoError(t, err)

	_, err = svc.Report(ctx, &session.Session{ID: "s1"}, Query{Range: rng})
	require.NoError(t, err)
	_, err = svc.Invalidate(ctx)
	require.NoError(t, err)

	// Closed days still come from the per-day cache after a report bump.
	_, err = svc.Report(ctx, &session.Session{ID: "s1"}, Query{Range: rng})
	require.NoError(t, err)
	assert.Len(t, backend.fetches, 1)

	mr.FlushAll()
	_, err = svc.Report(ctx, &session.Session{ID: "s1"}, Query{Range: rng})
	require.NoError(t, err)
	assert.Len(t, backend.fetches, 2)
}

func TestReportTooLargeMakesNoCalls(t *testing.T) {
	backend := &fakeBackend{data: sampleData()}
	svc, _ := newTestService(t, backend, nil)
	rng, err := daterange.ParseRange("2025-01-01", "2025-03-01")
	require.NoError(t, err)

	_, err = svc.Report(context.Background(), &session.Session{ID: "s1"}, Query{Range: rng})
	assert.ErrorIs(t, err, daterange.ErrRangeTooLarge)
	assert.Empty(t, backend.fetches)
}

func TestReportFailureIsNotCached(t *testing.T) {
	backend := &fakeBackend{err: errors.New("down")}
	svc, _ := newTestService(t, backend, nil)
	ctx := context.Background()
	rng, err := daterange.ParseRange("2025-04-01", "2025-04-03")
	require.NoError(t, err)

	_, err = svc.Report(ctx, &session.Session{ID: "s1"}, Query{Range: rng})
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Len(t, backend.fetches, 1)

	backend.err = nil
	backend.data = sampleData()
	report, err := svc.Report(ctx, &session.Session{ID: "s1"}, Query{Range: rng})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), report.Summary.TotalAmount)
}

func TestOpenDaysBypassDayCache(t *testing.T) {
	backend := &fakeBackend{data: sampleData()}
	svc, _ := newTestService(t, backend, nil)
	ctx := context.Background()
	rng, err := daterange.ParseRange("2025-04-10", "2025-04-10")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.Report(ctx, &session.Session{ID: "s1"}, Query{Range: rng})
		require.NoError(t, err)
		_, err = svc.Invalidate(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"2025-04-10", "2025-04-10"}, backend.fetches)
}

func TestPointsCachedOnSession(t *testing.T) {
	backend := &fakeBackend{points: []string{"A", "B"}}
	svc, _ := newTestService(t, backend, nil)
	sess := &session.Session{ID: "s1"}

	points, err := svc.Points(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, points)
	_, err = svc.Points(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.pointCalls)
	assert.Equal(t, "sid", sess.UpstreamSID())
}

func TestPurgeDays(t *testing.T) {
	backend := &fakeBackend{data: sampleData()}
	svc, _ := newTestService(t, backend, nil)
	ctx := context.Background()
	rng, err := daterange.ParseRange("2025-04-01", "2025-04-02")
	require.NoError(t, err)
	_, err = svc.Report(ctx, &session.Session{ID: "s1"}, Query{Range: rng})
	require.NoError(t, err)

	svc.clock = func() time.Time { return time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC) }
	removed, err := svc.PurgeDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestCachePolicyTTL(t *testing.T) {
	today := daterange.MustParse("2025-04-10")
	closed, _ := daterange.ParseRange("2025-04-01", "2025-04-09")
	open, _ := daterange.ParseRange("2025-04-01", "2025-04-10")
	assert.Equal(t, DefaultCachePolicy.ClosedTTL, DefaultCachePolicy.TTLFor(closed, today))
	assert.Equal(t, DefaultCachePolicy.OpenTTL, DefaultCachePolicy.TTLFor(open, today))
}

// gatedBackend blocks every fetch until release is closed.
type gatedBackend struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	fetches int
}

func (g *gatedBackend) Points(ctx context.Context, holder upstream.SIDHolder) ([]string, error) {
	return nil, nil
}

func (g *gatedBackend) FetchDay(ctx context.Context, holder upstream.SIDHolder, window daterange.Pair, point string) ([]PointSummary, error) {
	g.mu.Lock()
	g.fetches++
	g.mu.Unlock()
	if holder.UpstreamSID() == "" {
		holder.SetUpstreamSID("fresh")
	}
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return sampleData()[window.From.String()], nil
}

func TestSharedReportSurvivesCanceledCaller(t *testing.T) {
	backend := &gatedBackend{started: make(chan struct{}), release: make(chan struct{})}
	svc, _ := newTestService(t, backend, nil)
	rng, err := daterange.ParseRange("2025-04-01", "2025-04-01")
	require.NoError(t, err)

	ctxA, cancelA := context.WithCancel(context.Background())
	sessA := &session.Session{ID: "a"}
	errA := make(chan error, 1)
	go func() {
		_, err := svc.Report(ctxA, sessA, Query{Range: rng})
		errA <- err
	}()
	<-backend.started

	sessB := &session.Session{ID: "b"}
	type outcome struct {
		report Report
		err    error
	}
	resB := make(chan outcome, 1)
	go func() {
		report, err := svc.Report(context.Background(), sessB, Query{Range: rng})
		resB <- outcome{report: report, err: err}
	}()

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)
	close(backend.release)

	got := <-resB
	require.NoError(t, got.err)
	assert.Equal(t, int64(700), got.report.Summary.TotalAmount)
	assert.Equal(t, "fresh", sessB.UpstreamSID())
	assert.Empty(t, sessA.UpstreamSID())

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 1, backend.fetches)
}
