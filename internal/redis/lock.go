package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const sweepLeaseKey = "lease:sweep"

// LockStore handles distributed leasing in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireSweepLease attempts to take the staleness-sweep lease.
// Returns true if the lease was acquired, false if another instance holds it.
func (s *LockStore) AcquireSweepLease(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, sweepLeaseKey, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseSweepLease releases the staleness-sweep lease.
func (s *LockStore) ReleaseSweepLease(ctx context.Context) error {
	return s.client.Del(ctx, sweepLeaseKey).Err()
}
