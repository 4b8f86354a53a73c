package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStateStore implements StateStore using ttlcache. It is only suitable
// for a single instance deployment.
type MemoryStateStore struct {
	cache *ttlcache.Cache[string, *StateEntry]
}

// NewMemoryStateStore creates an in-memory store. defaultTTL applies to
// entries saved without an expiry.
//
//nolint:ireturn
func NewMemoryStateStore(defaultTTL time.Duration) StateStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *StateEntry](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, *StateEntry](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryStateStore{
		cache: cache,
	}
}

// Save implements StateStore.Save.
func (s *MemoryStateStore) Save(_ context.Context, entry *StateEntry) error {
	if entry == nil || entry.State == "" {
		return errors.New("state entry is empty")
	}

	ttl := ttlcache.DefaultTTL
	if !entry.ExpiresAt.IsZero() {
		ttl = time.Until(entry.ExpiresAt)
		if ttl <= 0 {
			return errors.New("state entry already expired")
		}
	}

	s.cache.Set(HashState(entry.State), entry, ttl)

	return nil
}

// Consume implements StateStore.Consume.
func (s *MemoryStateStore) Consume(_ context.Context, state string) (*StateEntry, error) {
	item, ok := s.cache.GetAndDelete(HashState(state))
	if !ok || item == nil {
		return nil, ErrStateNotFound
	}

	entry := item.Value()
	if entry.Expired(time.Now()) {
		return nil, ErrStateNotFound
	}

	return entry, nil
}

// Count counts the pending states.
func (s *MemoryStateStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryStateStore) Close() error {
	s.cache.Stop()

	return nil
}
