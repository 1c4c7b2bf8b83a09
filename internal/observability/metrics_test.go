package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/breadline/backoffice/internal/jobs"
	"github.com/breadline/backoffice/internal/upstream"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	require.NoError(t, jobs.Track("sales:warmup").End(nil))

	body := scrape(t, metrics)
	assert.Contains(t, body, `backoffice_jobs_total{job="sales:warmup",status="success"} 1`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `backoffice_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `backoffice_http_request_duration_seconds_bucket{route="/test"`)
}

func TestUpstreamAndCacheCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveUpstream("/api/receipts", nil, 20*time.Millisecond)
	metrics.ObserveUpstream("/api/receipts", fmt.Errorf("wrap: %w", upstream.ErrUnavailable), time.Second)
	metrics.ObserveUpstream("/api/kkts", upstream.ErrUnauthorized, time.Millisecond)
	metrics.ObserveUpstream("/api/kkts", errors.New("boom"), time.Millisecond)
	metrics.ObserveCache("sales", true)
	metrics.ObserveCache("sales", false)
	metrics.ObserveCache("sales", false)

	body := scrape(t, metrics)
	assert.Contains(t, body, `backoffice_upstream_requests_total{endpoint="/api/receipts",outcome="ok"} 1`)
	assert.Contains(t, body, `backoffice_upstream_requests_total{endpoint="/api/receipts",outcome="unavailable"} 1`)
	assert.Contains(t, body, `backoffice_upstream_requests_total{endpoint="/api/kkts",outcome="unauthorized"} 1`)
	assert.Contains(t, body, `backoffice_upstream_requests_total{endpoint="/api/kkts",outcome="error"} 1`)
	assert.Contains(t, body, `backoffice_cache_lookups_total{cache="sales",result="miss"} 2`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCache("sales", true)
	m.ObserveUpstream("/api/auth", nil, 0)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
