// Package memory implements store.Store entirely in memory with
// version-counter optimistic transactions. It backs the unit tests and is a
// faithful stand-in for the postgres backend: conflicting transactions really
// retry and really fail when the budget runs out.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"rydz/internal/store"
)

const maxTxAttempts = 5

type record struct {
	version   int64
	data      []byte
	updatedAt time.Time
}

// Store is an in-memory store.Store implementation.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*record
}

// Ensure the contract is satisfied.
var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{collections: make(map[string]map[string]*record)}
}

// Get reads a single committed document.
func (s *Store) Get(ctx context.Context, collection, id string) (*store.Doc, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.collections[collection][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return docFromRecord(collection, id, rec), nil
}

// txView implements store.Tx for one transaction attempt. Reads record the
// version observed; writes are buffered until commit.
type txView struct {
	s     *Store
	reads map[[2]string]int64 // (collection, id) -> version observed, 0 if absent
	order [][2]string
	puts  map[[2]string][]byte // nil value means delete
}

func (t *txView) key(collection, id string) [2]string {
	return [2]string{collection, id}
}

func (t *txView) Get(collection, id string) (*store.Doc, error) {
	k := t.key(collection, id)
	// Reads observe this transaction's own buffered writes.
	if data, ok := t.puts[k]; ok {
		if data == nil {
			return nil, store.ErrNotFound
		}
		return &store.Doc{Collection: collection, ID: id, Data: append([]byte(nil), data...)}, nil
	}

	t.s.mu.RLock()
	rec, ok := t.s.collections[collection][id]
	t.s.mu.RUnlock()

	if !ok {
		t.reads[k] = 0
		return nil, store.ErrNotFound
	}
	t.reads[k] = rec.version
	return docFromRecord(collection, id, rec), nil
}

func (t *txView) Put(collection, id string, data []byte) {
	k := t.key(collection, id)
	if _, ok := t.puts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.puts[k] = append([]byte(nil), data...)
}

func (t *txView) Delete(collection, id string) {
	k := t.key(collection, id)
	if _, ok := t.puts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.puts[k] = nil
}

// RunTransaction runs fn optimistically, retrying on conflict up to
// maxTxAttempts before surfacing store.ErrConflict.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if err := ctxErr(ctx); err != nil {
			return err
		}

		tx := &txView{
			s:     s,
			reads: make(map[[2]string]int64),
			puts:  make(map[[2]string][]byte),
		}
		if err := fn(tx); err != nil {
			return err
		}
		if s.commit(tx) {
			return nil
		}
	}
	return store.ErrConflict
}

// commit validates the read set and applies buffered writes under the write
// lock. Returns false when a read document changed since it was observed.
func (s *Store) commit(tx *txView) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, version := range tx.reads {
		rec, ok := s.collections[k[0]][k[1]]
		switch {
		case !ok && version != 0:
			return false
		case ok && rec.version != version:
			return false
		}
	}

	now := time.Now()
	for _, k := range tx.order {
		data := tx.puts[k]
		if data == nil {
			delete(s.collections[k[0]], k[1])
			continue
		}
		s.apply(k[0], k[1], data, now)
	}
	return true
}

// BatchWrite applies all writes atomically.
func (s *Store) BatchWrite(ctx context.Context, writes []store.Write) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, w := range writes {
		if w.Data == nil {
			delete(s.collections[w.Collection], w.ID)
			continue
		}
		s.apply(w.Collection, w.ID, w.Data, now)
	}
	return nil
}

// apply writes one document. Caller holds the write lock.
func (s *Store) apply(collection, id string, data []byte, now time.Time) {
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]*record)
		s.collections[collection] = coll
	}
	var version int64 = 1
	if prev, ok := coll[id]; ok {
		version = prev.version + 1
	}
	coll[id] = &record{
		version:   version,
		data:      append([]byte(nil), data...),
		updatedAt: now,
	}
}

// Query scans the collection and evaluates filters against decoded JSON
// bodies. Good enough for the fake; the postgres backend uses JSONB indexes.
func (s *Store) Query(ctx context.Context, collection string, filters []store.Filter, order *store.Order, limit int) ([]*store.Doc, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var matched []*store.Doc
	for id, rec := range s.collections[collection] {
		fields, err := decodeFields(rec.data)
		if err != nil {
			continue
		}
		if matchesAll(fields, filters) {
			matched = append(matched, docFromRecord(collection, id, rec))
		}
	}
	s.mu.RUnlock()

	if order != nil {
		sortDocs(matched, order)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func decodeFields(data []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func matchesAll(fields map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		if !matches(fields, f) {
			return false
		}
	}
	return true
}

func matches(fields map[string]any, f store.Filter) bool {
	value, ok := fields[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case store.OpEq:
		// Booleans compare as their text form, matching the postgres
		// backend's ->> rendering.
		switch v := value.(type) {
		case string:
			return v == f.Value
		case bool:
			return strconv.FormatBool(v) == f.Value
		}
		return false
	case store.OpLt:
		s, ok := value.(string)
		return ok && s < f.Value
	case store.OpGte:
		s, ok := value.(string)
		return ok && s >= f.Value
	case store.OpContains:
		list, ok := value.([]any)
		if !ok {
			return false
		}
		for _, v := range list {
			if s, ok := v.(string); ok && s == f.Value {
				return true
			}
		}
	}
	return false
}

func sortDocs(docs []*store.Doc, order *store.Order) {
	key := func(d *store.Doc) string {
		fields, err := decodeFields(d.Data)
		if err != nil {
			return ""
		}
		s, _ := fields[order.Field].(string)
		return s
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := key(docs[i]), key(docs[j])
		if order.Desc {
			return a > b
		}
		return a < b
	})
}

func docFromRecord(collection, id string, rec *record) *store.Doc {
	return &store.Doc{
		Collection: collection,
		ID:         id,
		Version:    rec.version,
		Data:       append([]byte(nil), rec.data...),
		UpdatedAt:  rec.updatedAt,
	}
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return store.ErrTimeout
		}
		return err
	}
	return nil
}
