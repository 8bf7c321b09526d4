// Package store defines the document store the core is written against: a
// collection/id keyed store with document-level optimistic transactions,
// all-or-nothing batched writes, and indexed field queries. Backends live in
// the memory and postgres subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when a transaction's read set was modified
	// concurrently and the retry budget is exhausted. Safe to retry.
	ErrConflict = errors.New("transaction conflict")

	// ErrTimeout is returned when a store call exceeded its deadline.
	// Retryable, unlike a validation or state failure.
	ErrTimeout = errors.New("store timeout")
)

// Doc is a raw stored document. Data is the JSON body; Version increments on
// every write and backs optimistic concurrency checks.
type Doc struct {
	Collection string
	ID         string
	Version    int64
	Data       []byte
	UpdatedAt  time.Time
}

// Write is one element of a batch. A nil Data deletes the document.
type Write struct {
	Collection string
	ID         string
	Data       []byte
}

// Op is a query filter operator.
type Op string

const (
	OpEq       Op = "=="
	OpLt       Op = "<"
	OpGte      Op = ">="
	OpContains Op = "contains" // array field contains value
)

// Filter restricts a query to documents whose field matches a value. Time
// values are compared via their RFC 3339 encoding, so lexical order matches
// chronological order.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// Order sorts query results by a field.
type Order struct {
	Field string
	Desc  bool
}

// Tx is the view a transaction function operates on. Reads observe committed
// state as of the attempt; buffered writes apply atomically at commit, and
// commit fails if any document read or written changed concurrently.
type Tx interface {
	// Get reads a document inside the transaction.
	Get(collection, id string) (*Doc, error)

	// Put buffers a create-or-replace of a document.
	Put(collection, id string, data []byte)

	// Delete buffers a document deletion.
	Delete(collection, id string)
}

// Store is the transactional document store contract. Implementations retry
// conflicting transactions up to a fixed bound before surfacing ErrConflict,
// and bound every call with the context deadline.
type Store interface {
	// Get reads a single committed document.
	Get(ctx context.Context, collection, id string) (*Doc, error)

	// RunTransaction runs fn against a consistent snapshot, committing its
	// buffered writes atomically. fn must be pure apart from Tx calls: it
	// may run multiple times.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	// BatchWrite applies all writes atomically, without a read-validate
	// cycle. Used where the caller's invariant does not depend on prior
	// document state.
	BatchWrite(ctx context.Context, writes []Write) error

	// Query returns committed documents matching all filters, ordered and
	// limited. A limit of 0 means no limit.
	Query(ctx context.Context, collection string, filters []Filter, order *Order, limit int) ([]*Doc, error)
}
