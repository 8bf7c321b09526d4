// Package postgres implements store.Store on a single JSONB documents table.
// Optimistic concurrency is done with a version column: transactional writes
// only apply when the version a document was read at is still current.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"rydz/internal/store"
)

const maxTxAttempts = 5

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier     = (*sql.DB)(nil)
	_ Querier     = (*sql.Tx)(nil)
	_ store.Store = (*Store)(nil)
)

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db *sql.DB
}

// New creates a postgres document store over an open connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the documents table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT        NOT NULL,
			id         TEXT        NOT NULL,
			version    BIGINT      NOT NULL,
			body       JSONB       NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (collection, id)
		)
	`)
	return mapErr(err)
}

// Get reads a single committed document.
func (s *Store) Get(ctx context.Context, collection, id string) (*store.Doc, error) {
	return getDoc(ctx, s.db, collection, id)
}

func getDoc(ctx context.Context, q Querier, collection, id string) (*store.Doc, error) {
	query := `SELECT version, body, updated_at FROM documents WHERE collection = $1 AND id = $2`

	doc := &store.Doc{Collection: collection, ID: id}
	err := q.QueryRowContext(ctx, query, collection, id).Scan(&doc.Version, &doc.Data, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapErr(err)
	}
	return doc, nil
}

// txView implements store.Tx over one database transaction attempt.
type txView struct {
	ctx   context.Context
	tx    *sql.Tx
	reads map[[2]string]int64
	order [][2]string
	puts  map[[2]string][]byte
	err   error
}

func (t *txView) Get(collection, id string) (*store.Doc, error) {
	k := [2]string{collection, id}
	if data, ok := t.puts[k]; ok {
		if data == nil {
			return nil, store.ErrNotFound
		}
		return &store.Doc{Collection: collection, ID: id, Data: data}, nil
	}

	doc, err := getDoc(t.ctx, t.tx, collection, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			t.reads[k] = 0
		}
		return nil, err
	}
	t.reads[k] = doc.Version
	return doc, nil
}

func (t *txView) Put(collection, id string, data []byte) {
	k := [2]string{collection, id}
	if _, ok := t.puts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.puts[k] = data
}

func (t *txView) Delete(collection, id string) {
	k := [2]string{collection, id}
	if _, ok := t.puts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.puts[k] = nil
}

// RunTransaction runs fn optimistically, retrying on conflict up to
// maxTxAttempts before surfacing store.ErrConflict.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		committed, err := s.attempt(ctx, fn)
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
	}
	return store.ErrConflict
}

// attempt runs fn once. Returns (false, nil) when the commit lost a version
// race and the caller should retry.
func (s *Store) attempt(ctx context.Context, fn func(tx store.Tx) error) (bool, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, mapErr(err)
	}
	defer dbTx.Rollback()

	view := &txView{
		ctx:   ctx,
		tx:    dbTx,
		reads: make(map[[2]string]int64),
		puts:  make(map[[2]string][]byte),
	}
	if err := fn(view); err != nil {
		return false, err
	}

	for _, k := range view.order {
		conflicted, err := applyWrite(ctx, dbTx, k[0], k[1], view.puts[k], view.reads[k])
		if err != nil {
			return false, mapErr(err)
		}
		if conflicted {
			return false, nil
		}
	}

	if err := dbTx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return false, nil
		}
		return false, mapErr(err)
	}
	return true, nil
}

// applyWrite applies one buffered write with its version precondition.
// readVersion 0 means the document was read as absent (or never read, for a
// blind put of a freshly minted id).
func applyWrite(ctx context.Context, tx *sql.Tx, collection, id string, data []byte, readVersion int64) (conflicted bool, err error) {
	if data == nil {
		query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
		args := []any{collection, id}
		if readVersion > 0 {
			query += ` AND version = $3`
			args = append(args, readVersion)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return false, err
		}
		if readVersion > 0 {
			n, err := res.RowsAffected()
			if err != nil {
				return false, err
			}
			return n == 0, nil
		}
		return false, nil
	}

	if readVersion > 0 {
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET version = version + 1, body = $4, updated_at = NOW()
			WHERE collection = $1 AND id = $2 AND version = $3
		`, collection, id, readVersion, data)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		return n == 0, nil
	}

	// Document was absent at read time: the insert must not clobber a
	// concurrently created document.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, version, body, updated_at)
		VALUES ($1, $2, 1, $3, NOW())
		ON CONFLICT (collection, id) DO NOTHING
	`, collection, id, data)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// BatchWrite applies all writes in a single database transaction.
func (s *Store) BatchWrite(ctx context.Context, writes []store.Write) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback()

	for _, w := range writes {
		if w.Data == nil {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents WHERE collection = $1 AND id = $2`,
				w.Collection, w.ID); err != nil {
				return mapErr(err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, version, body, updated_at)
			VALUES ($1, $2, 1, $3, NOW())
			ON CONFLICT (collection, id)
			DO UPDATE SET version = documents.version + 1, body = $3, updated_at = NOW()
		`, w.Collection, w.ID, w.Data); err != nil {
			return mapErr(err)
		}
	}

	return mapErr(tx.Commit())
}

// Query builds a JSONB query from the filters. Time-valued fields are stored
// RFC 3339, so text comparison matches chronological order.
func (s *Store) Query(ctx context.Context, collection string, filters []store.Filter, order *store.Order, limit int) ([]*store.Doc, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, version, body, updated_at FROM documents WHERE collection = $1`)
	args := []any{collection}

	for _, f := range filters {
		args = append(args, f.Value)
		n := len(args)
		switch f.Op {
		case store.OpEq:
			fmt.Fprintf(&sb, ` AND body->>'%s' = $%d`, f.Field, n)
		case store.OpLt:
			fmt.Fprintf(&sb, ` AND body->>'%s' < $%d`, f.Field, n)
		case store.OpGte:
			fmt.Fprintf(&sb, ` AND body->>'%s' >= $%d`, f.Field, n)
		case store.OpContains:
			fmt.Fprintf(&sb, ` AND body->'%s' ? $%d`, f.Field, n)
		default:
			return nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}

	if order != nil {
		dir := "ASC"
		if order.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, ` ORDER BY body->>'%s' %s NULLS LAST`, order.Field, dir)
	}
	if limit > 0 {
		fmt.Fprintf(&sb, ` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var docs []*store.Doc
	for rows.Next() {
		doc := &store.Doc{Collection: collection}
		if err := rows.Scan(&doc.ID, &doc.Version, &doc.Data, &doc.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		docs = append(docs, doc)
	}
	return docs, mapErr(rows.Err())
}

// isSerializationFailure reports whether err is a postgres serialization or
// deadlock failure worth retrying (SQLSTATE 40001/40P01).
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// mapErr translates driver errors into the store's error vocabulary.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return store.ErrTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return store.ErrTimeout
	}
	return err
}
