package app

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/breadline/backoffice/internal/platform/httpx"
)

// TokenVerifier checks bearer tokens against a bcrypt hash. Tokens that
// matched once are remembered by digest so bcrypt runs once per token.
type TokenVerifier struct {
	hash     []byte
	mu       sync.RWMutex
	accepted [][sha256.Size]byte
}

// NewTokenVerifier constructs a verifier for hash.
func NewTokenVerifier(hash string) *TokenVerifier {
	return &TokenVerifier{hash: []byte(hash)}
}

// Verify reports whether token matches the configured hash.
func (v *TokenVerifier) Verify(token string) bool {
	if v == nil || len(v.hash) == 0 || token == "" {
		return false
	}
	digest := sha256.Sum256([]byte(token))
	v.mu.RLock()
	for _, known := range v.accepted {
		if subtle.ConstantTimeCompare(known[:], digest[:]) == 1 {
			v.mu.RUnlock()
			return true
		}
	}
	v.mu.RUnlock()
	if bcrypt.CompareHashAndPassword(v.hash, []byte(token)) != nil {
		return false
	}
	v.mu.Lock()
	v.accepted = append(v.accepted, digest)
	v.mu.Unlock()
	return true
}

// Middleware rejects requests without a valid bearer token.
func (v *TokenVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Verify(bearerToken(r)) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="backoffice"`)
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "a valid bearer token is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
