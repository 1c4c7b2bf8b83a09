package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL: srv.URL,
		Token:   "secret",
		Retry:   retry.Policy{MaxAttempts: 3, Delay: time.Millisecond},
	})
}

func TestAuthenticate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"sid":"abc"}`))
	})
	sid, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", sid)
}

func TestPointsSendsSessionHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.Header.Get("X-SBISSessionID"))
		_, _ = w.Write([]byte(`{"kkts":[{"regId":"1","fsNumber":"9","pointName":"Center"}]}`))
	})
	points, err := client.Points(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Center", points[0].PointName)
}

func TestReceiptsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2025-04-01", q.Get("date_from"))
		assert.Equal(t, "2025-04-02", q.Get("date_to"))
		assert.Equal(t, "Center", q.Get("point_name"))
		_, _ = w.Write([]byte(`{"data":[{"point_name":"Center","items":[{"name":"Bread","quantity":2,"total_sum":200}],"total_sum":200}]}`))
	})
	window := daterange.Pair{From: daterange.MustParse("2025-04-01"), To: daterange.MustParse("2025-04-02")}
	receipts, err := client.Receipts(context.Background(), "abc", window, "Center")
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, int64(200), receipts[0].Items[0].TotalSum)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	window := daterange.Pair{From: daterange.MustParse("2025-04-01"), To: daterange.MustParse("2025-04-02")}
	receipts, err := client.Receipts(context.Background(), "abc", window, "")
	require.NoError(t, err)
	assert.Empty(t, receipts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExhaustedRetriesReportUnavailable(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := client.Points(context.Background(), "abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := client.Points(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
}

type holder struct{ sid string }

func (h *holder) UpstreamSID() string       { return h.sid }
func (h *holder) SetUpstreamSID(sid string) { h.sid = sid }

func TestWithSessionReauthenticatesOnce(t *testing.T) {
	var auths atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth":
			auths.Add(1)
			_, _ = w.Write([]byte(`{"sid":"fresh"}`))
		case "/api/kkts":
			if r.Header.Get("X-SBISSessionID") != "fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"kkts":[]}`))
		}
	})
	h := &holder{sid: "stale"}
	err := client.WithSession(context.Background(), h, func(ctx context.Context, sid string) error {
		_, err := client.Points(ctx, sid)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", h.sid)
	assert.Equal(t, int32(1), auths.Load())
}
