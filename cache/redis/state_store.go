package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/pagepost/cache"
	"github.com/redis/go-redis/v9"
)

// StateStore implements cache.StateStore on Redis so several instances can
// share pending authorization requests.
type StateStore struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
}

var _ cache.StateStore = (*StateStore)(nil)

// NewStateStore creates a new [StateStore] instance.
func NewStateStore(client redis.UniversalClient, prefix string, defaultTTL time.Duration) *StateStore {
	return &StateStore{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
	}
}

// redisKey returns the Redis key for a given state.
func (r *StateStore) redisKey(state string) string {
	return fmt.Sprintf("%s:state:%s", r.prefix, cache.HashState(state))
}

// Save stores the entry with an expiry matching ExpiresAt.
func (r *StateStore) Save(ctx context.Context, entry *cache.StateEntry) error {
	if entry == nil || entry.State == "" {
		return errors.New("state entry is empty")
	}

	ttl := r.defaultTTL
	if !entry.ExpiresAt.IsZero() {
		ttl = time.Until(entry.ExpiresAt)
	}
	if ttl <= 0 {
		return errors.New("state entry already expired")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := r.client.Set(ctx, r.redisKey(entry.State), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set state in Redis: %w", err)
	}

	return nil
}

// Consume reads and deletes the entry in one GETDEL round trip.
func (r *StateStore) Consume(ctx context.Context, state string) (*cache.StateEntry, error) {
	raw, err := r.client.GetDel(ctx, r.redisKey(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume state from Redis: %w", err)
	}

	var entry cache.StateEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	if entry.Expired(time.Now()) {
		return nil, cache.ErrStateNotFound
	}

	return &entry, nil
}

// Count scans the pending state keys. Intended for diagnostics only.
func (r *StateStore) Count(ctx context.Context) int {
	var (
		count  int
		cursor uint64
	)
	pattern := fmt.Sprintf("%s:state:*", r.prefix)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return count
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count
		}
	}
}

// Close closes the underlying client.
func (r *StateStore) Close() error {
	return r.client.Close()
}
