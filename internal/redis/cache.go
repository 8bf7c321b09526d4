package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles read-side caching in Redis. Ride state is never cached;
// only display identities (slow-changing) and idempotency records live here.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants.
const (
	displayNameTTL = 5 * time.Minute
	idempotencyTTL = 24 * time.Hour
)

// Key prefixes.
const (
	displayNamePrefix = "cache:display:"
	idempotencyPrefix = "idempotency:"
)

// GetDisplayName returns a cached display name. The second return is false
// on a miss; misses are never errors.
func (s *CacheStore) GetDisplayName(ctx context.Context, userID string) (string, bool) {
	name, err := s.client.Get(ctx, displayNamePrefix+userID).Result()
	if err != nil {
		return "", false
	}
	return name, true
}

// SetDisplayName caches a display name. Fire and forget.
func (s *CacheStore) SetDisplayName(ctx context.Context, userID, name string) {
	_ = s.client.Set(ctx, displayNamePrefix+userID, name, displayNameTTL).Err()
}

// InvalidateDisplayName drops a cached display name after a profile edit.
// Fire and forget; a stale name ages out by TTL anyway.
func (s *CacheStore) InvalidateDisplayName(ctx context.Context, userID string) {
	_ = s.client.Del(ctx, displayNamePrefix+userID).Err()
}

// GetIdempotentResponse retrieves a recorded response body for an
// idempotency key. Returns nil on a miss.
func (s *CacheStore) GetIdempotentResponse(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// SetIdempotentResponse records a response body for an idempotency key.
func (s *CacheStore) SetIdempotentResponse(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, idempotencyPrefix+key, data, idempotencyTTL).Err()
}
