// Package session keeps per-client dashboard state: the upstream session id,
// the cached point list and production-planning overrides all hang off an
// explicit Session value persisted in the key-value store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/breadline/backoffice/internal/platform/kv"
)

// HeaderName carries the session id for API clients that do not keep cookies.
const HeaderName = "X-Session-ID"

// Session holds per-client state.
type Session struct {
	ID          string
	upstreamSID string
	points      []string
	pointsAt    time.Time
	isNew       bool
	dirty       bool
	destroyed   bool
}

type payload struct {
	UpstreamSID string    `json:"upstream_sid"`
	Points      []string  `json:"points"`
	PointsAt    time.Time `json:"points_at"`
}

// SessionID returns the dashboard session id.
func (s *Session) SessionID() string { return s.ID }

// UpstreamSID returns the receipts backend session id, if one was opened.
func (s *Session) UpstreamSID() string { return s.upstreamSID }

// SetUpstreamSID records the backend session id.
func (s *Session) SetUpstreamSID(sid string) {
	if s.upstreamSID == sid {
		return
	}
	s.upstreamSID = sid
	s.dirty = true
}

// Points returns the cached point names when they are younger than maxAge.
func (s *Session) Points(now time.Time, maxAge time.Duration) ([]string, bool) {
	if s.pointsAt.IsZero() {
		return nil, false
	}
	if maxAge > 0 && now.Sub(s.pointsAt) > maxAge {
		return nil, false
	}
	return append([]string(nil), s.points...), true
}

// SetPoints caches the point list.
func (s *Session) SetPoints(points []string, now time.Time) {
	s.points = append([]string(nil), points...)
	s.pointsAt = now
	s.dirty = true
}

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool { return s.isNew }

// Manager loads and persists sessions.
type Manager struct {
	store      kv.Store
	cookieName string
	ttl        time.Duration
	secure     bool
	clock      func() time.Time
}

// NewManager constructs a Manager.
func NewManager(store kv.Store, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:      store,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// Now returns the manager's clock reading.
func (m *Manager) Now() time.Time { return m.clock() }

// Load resolves the request's session from the header or cookie, creating a
// new one when neither names a live session.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	id := r.Header.Get(HeaderName)
	if id == "" {
		if cookie, err := r.Cookie(m.cookieName); err == nil {
			id = cookie.Value
		}
	}
	if id == "" {
		return m.newSession(), nil
	}
	return m.Get(ctx, id)
}

// Get loads a session by id. A missing id yields a fresh session reusing it.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return m.newSession(), nil
	}
	raw, err := m.store.Get(ctx, m.key(id))
	if errors.Is(err, kv.ErrMiss) {
		sess := m.newSession()
		sess.ID = id
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	var stored payload
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &Session{
		ID:          id,
		upstreamSID: stored.UpstreamSID,
		points:      stored.Points,
		pointsAt:    stored.PointsAt,
	}, nil
}

// Save persists the session when it changed and refreshes its TTL.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.destroyed {
		return nil
	}
	if !sess.dirty && !sess.isNew {
		return nil
	}
	data, err := json.Marshal(payload{UpstreamSID: sess.upstreamSID, Points: sess.points, PointsAt: sess.pointsAt})
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, m.key(sess.ID), data, m.ttl); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	sess.dirty = false
	sess.isNew = false
	return nil
}

// Commit saves the session and writes the identifying cookie and header.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.destroyed {
		if err := m.store.Delete(ctx, m.key(sess.ID)); err != nil {
			return err
		}
		http.SetCookie(w, &http.Cookie{Name: m.cookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: m.secure, SameSite: http.SameSiteStrictMode})
		return nil
	}
	if err := m.Save(ctx, sess); err != nil {
		return err
	}
	w.Header().Set(HeaderName, sess.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  m.clock().Add(m.ttl),
	})
	return nil
}

// Destroy marks the session for deletion at commit.
func (m *Manager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) newSession() *Session {
	return &Session{ID: uuid.NewString(), isNew: true, dirty: true}
}

func (m *Manager) key(id string) string {
	return "session:" + id
}

type ctxKey struct{}

// WithSession stores sess on ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the request's session or nil.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(ctxKey{}).(*Session)
	return sess
}
