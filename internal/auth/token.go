// Package auth provides the bearer token the backend client attaches to
// outgoing requests. The kiosk never validates tokens itself — the backend
// is the authority — but it does stop offering a JWT once its expiry has
// passed, so requests fail locally instead of burning a round trip.
package auth

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the current bearer token. The second return is false
// when no usable token is available, in which case requests go out
// unauthenticated.
type TokenSource interface {
	Token() (string, bool)
}

// NoneSource is the TokenSource for kiosks running without operator auth.
type NoneSource struct{}

func (NoneSource) Token() (string, bool) { return "", false }

// BearerSource holds a single operator-issued token. If the token parses as
// a JWT carrying an exp claim, it is withheld once expired; opaque tokens
// are offered indefinitely.
type BearerSource struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time // zero when the token has no known expiry
}

func NewBearerSource(token string) *BearerSource {
	s := &BearerSource{}
	s.Set(token)
	return s
}

// Set replaces the current token, re-deriving its expiry.
func (s *BearerSource) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.expiresAt = time.Time{}

	if token == "" {
		return
	}

	claims := jwt.MapClaims{}
	// Unverified parse: only the exp claim matters here.
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	s.expiresAt = exp.Time
}

func (s *BearerSource) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", false
	}
	if !s.expiresAt.IsZero() && time.Now().After(s.expiresAt) {
		return "", false
	}
	return s.token, true
}
