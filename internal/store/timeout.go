package store

import (
	"context"
	"time"
)

// WithTimeout wraps a store so every call runs under a bounded deadline.
// Expiry surfaces as ErrTimeout through the adapter's context mapping.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &boundedStore{inner: s, timeout: d}
}

type boundedStore struct {
	inner   Store
	timeout time.Duration
}

func (b *boundedStore) Get(ctx context.Context, collection, id string) (*Doc, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.Get(ctx, collection, id)
}

func (b *boundedStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.RunTransaction(ctx, fn)
}

func (b *boundedStore) BatchWrite(ctx context.Context, writes []Write) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.BatchWrite(ctx, writes)
}

func (b *boundedStore) Query(ctx context.Context, collection string, filters []Filter, order *Order, limit int) ([]*Doc, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.Query(ctx, collection, filters, order, limit)
}
