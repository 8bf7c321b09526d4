package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for the sweep lease.
type LockStoreInterface interface {
	AcquireSweepLease(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseSweepLease(ctx context.Context) error
}

// CacheStoreInterface defines the interface for read-side caching.
type CacheStoreInterface interface {
	GetDisplayName(ctx context.Context, userID string) (string, bool)
	SetDisplayName(ctx context.Context, userID, name string)
	InvalidateDisplayName(ctx context.Context, userID string)
	GetIdempotentResponse(ctx context.Context, key string) ([]byte, error)
	SetIdempotentResponse(ctx context.Context, key string, data []byte) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface  = (*LockStore)(nil)
	_ CacheStoreInterface = (*CacheStore)(nil)
)
