package cache

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// ErrStateNotFound is returned when a state was never issued, has expired or
// has already been used.
var ErrStateNotFound = errors.New("oauth state not found")

// StateEntry is a pending authorization request. It lives from the redirect
// to the provider until the callback consumes it.
type StateEntry struct {
	State       string    `json:"state"`
	RedirectURI string    `json:"redirect_uri"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (e *StateEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// StateStore keeps CSRF state values between the authorization redirect and
// the callback. Entries are single use.
type StateStore interface {
	Save(ctx context.Context, entry *StateEntry) error
	// Consume atomically fetches and removes the entry. It returns
	// ErrStateNotFound for unknown, expired or already consumed states.
	Consume(ctx context.Context, state string) (*StateEntry, error)
	Count(ctx context.Context) int
	Close() error
}

// NewState returns a 32 byte random value, base64url encoded without padding.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewStateEntry generates a fresh state valid for ttl.
func NewStateEntry(redirectURI string, ttl time.Duration) (*StateEntry, error) {
	state, err := NewState()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &StateEntry{
		State:       state,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}
