// Package sqlstore is a flat document backend on a single relational table keyed by
// (collection, doc_id), with the document body stored as JSON.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lexicon/internal/docstore"
	"lexicon/internal/docstore/flat"
	"lexicon/pkg/platform/tx"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "lexicon_documents"

// Store implements flat.Backend, flat.Finder and flat.Purger.
type Store struct {
	db      *sql.DB
	dialect dialect
	table   string
	q       string
}

// NewPostgres builds a backend for a database/sql pool opened with the pgx driver.
func NewPostgres(db *sql.DB, table string) *Store {
	return newStore(db, postgres, table)
}

// NewSQLite builds a backend for a database/sql pool opened with the modernc sqlite driver.
func NewSQLite(db *sql.DB, table string) *Store {
	return newStore(db, sqlite, table)
}

func newStore(db *sql.DB, d dialect, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, dialect: d, table: table, q: d.quote(table)}
}

// conn returns the transaction carried by ctx, if any, else the pool.
func (s *Store) conn(ctx context.Context) tx.Querier {
	return tx.Conn(ctx, s.db)
}

// RunInTx runs fn with a transaction in its context; store calls made with that context join it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

// Migrate creates the document table and its alias index.
func (s *Store) Migrate(ctx context.Context) error {
	return s.RunInTx(ctx, func(ctx context.Context) error {
		for _, stmt := range s.dialect.schema(s.table) {
			if _, err := s.conn(ctx).ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: %w", s.table, err)
			}
		}
		return nil
	})
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) p(n int) string { return s.dialect.placeholder(n) }

func (s *Store) Get(ctx context.Context, collection, id string) (flat.Record, bool, error) {
	query := fmt.Sprintf(`SELECT doc_id, data, version FROM %s WHERE collection = %s AND doc_id = %s`,
		s.q, s.p(1), s.p(2))
	return s.queryOne(ctx, query, collection, id)
}

func (s *Store) GetByField(ctx context.Context, collection, field, value string) (flat.Record, bool, error) {
	query := fmt.Sprintf(`SELECT doc_id, data, version FROM %s WHERE collection = %s AND %s = %s ORDER BY doc_id LIMIT 1`,
		s.q, s.p(1), s.dialect.fieldText(s.p(2)), s.p(3))
	return s.queryOne(ctx, query, collection, field, value)
}

func (s *Store) queryOne(ctx context.Context, query string, args ...any) (flat.Record, bool, error) {
	var (
		rec flat.Record
		raw []byte
	)
	err := s.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&rec.ID, &raw, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return flat.Record{}, false, nil
	}
	if err != nil {
		return flat.Record{}, false, fmt.Errorf("query document: %w", err)
	}
	if rec.Data, err = decode(raw); err != nil {
		return flat.Record{}, false, err
	}
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, collection, id string, data map[string]any, cond docstore.Conditions) (int64, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("encode document: %w", err)
	}
	path := docstore.JoinPath(collection, id)

	switch {
	case cond.HasVersion:
		if cond.MustNotExist {
			return 0, cond.Check(path, 0, true)
		}
		query := fmt.Sprintf(`UPDATE %s SET data = %s, version = version + 1, updated_at = %s
			WHERE collection = %s AND doc_id = %s AND version = %s`,
			s.q, s.dialect.jsonParam(s.p(1)), s.dialect.now, s.p(2), s.p(3), s.p(4))
		res, err := s.conn(ctx).ExecContext(ctx, query, string(raw), collection, id, cond.Version)
		if err != nil {
			return 0, fmt.Errorf("update document: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return 0, fmt.Errorf("update document: %w", err)
		} else if n == 0 {
			return 0, s.conflict(ctx, collection, id, cond)
		}
		return cond.Version + 1, nil

	case cond.MustNotExist:
		query := fmt.Sprintf(`INSERT INTO %s (collection, doc_id, data, version) VALUES (%s, %s, %s, 1)
			ON CONFLICT (collection, doc_id) DO NOTHING`,
			s.q, s.p(1), s.p(2), s.dialect.jsonParam(s.p(3)))
		res, err := s.conn(ctx).ExecContext(ctx, query, collection, id, string(raw))
		if err != nil {
			return 0, fmt.Errorf("insert document: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return 0, fmt.Errorf("insert document: %w", err)
		} else if n == 0 {
			return 0, s.conflict(ctx, collection, id, cond)
		}
		return 1, nil

	default:
		query := fmt.Sprintf(`INSERT INTO %[1]s (collection, doc_id, data, version) VALUES (%[2]s, %[3]s, %[4]s, 1)
			ON CONFLICT (collection, doc_id) DO UPDATE SET
				data = excluded.data,
				version = %[1]s.version + 1,
				updated_at = %[5]s
			RETURNING version`,
			s.q, s.p(1), s.p(2), s.dialect.jsonParam(s.p(3)), s.dialect.now)
		var version int64
		if err := s.conn(ctx).QueryRowContext(ctx, query, collection, id, string(raw)).Scan(&version); err != nil {
			return 0, fmt.Errorf("upsert document: %w", err)
		}
		return version, nil
	}
}

func (s *Store) Delete(ctx context.Context, collection, id string, cond docstore.Conditions) error {
	if cond.MustNotExist {
		cur, exists, err := s.currentVersion(ctx, collection, id)
		if err != nil {
			return err
		}
		return cond.Check(docstore.JoinPath(collection, id), cur, exists)
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE collection = %s AND doc_id = %s`, s.q, s.p(1), s.p(2))
	args := []any{collection, id}
	if cond.HasVersion {
		query += fmt.Sprintf(` AND version = %s`, s.p(3))
		args = append(args, cond.Version)
	}
	res, err := s.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if !cond.HasVersion {
		return nil
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete document: %w", err)
	} else if n == 0 {
		return s.conflict(ctx, collection, id, cond)
	}
	return nil
}

// conflict re-reads the current version to build a precise ConflictError.
func (s *Store) conflict(ctx context.Context, collection, id string, cond docstore.Conditions) error {
	path := docstore.JoinPath(collection, id)
	cur, exists, err := s.currentVersion(ctx, collection, id)
	if err != nil {
		return err
	}
	if checkErr := cond.Check(path, cur, exists); checkErr != nil {
		return checkErr
	}
	// The row changed again between the failed write and the re-read.
	return &docstore.ConflictError{Path: path, Expected: cond.Version, Current: cur, Reason: "concurrent write"}
}

func (s *Store) currentVersion(ctx context.Context, collection, id string) (int64, bool, error) {
	query := fmt.Sprintf(`SELECT version FROM %s WHERE collection = %s AND doc_id = %s`, s.q, s.p(1), s.p(2))
	var v int64
	err := s.conn(ctx).QueryRowContext(ctx, query, collection, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read version: %w", err)
	}
	return v, true, nil
}

func (s *Store) Scan(ctx context.Context, collection string) ([]flat.Record, error) {
	query := fmt.Sprintf(`SELECT doc_id, data, version FROM %s WHERE collection = %s ORDER BY doc_id`, s.q, s.p(1))
	return s.queryMany(ctx, query, collection)
}

// Find pushes equality filters down as JSON containment on Postgres. SQLite scans.
func (s *Store) Find(ctx context.Context, collection string, q docstore.Query) ([]flat.Record, error) {
	filter, ok := q.FilterDocument()
	if !ok || s.dialect.name != postgres.name {
		return s.Scan(ctx, collection)
	}
	query := fmt.Sprintf(`SELECT doc_id, data, version FROM %s WHERE collection = %s AND data @> %s ORDER BY doc_id`,
		s.q, s.p(1), s.dialect.jsonParam(s.p(2)))
	return s.queryMany(ctx, query, collection, filter)
}

func (s *Store) queryMany(ctx context.Context, query string, args ...any) ([]flat.Record, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []flat.Record
	for rows.Next() {
		var (
			rec flat.Record
			raw []byte
		)
		if err := rows.Scan(&rec.ID, &raw, &rec.Version); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if rec.Data, err = decode(raw); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Purge deletes every document of the named collections in one statement.
func (s *Store) Purge(ctx context.Context, collections []string) error {
	if len(collections) == 0 {
		return nil
	}
	var (
		query string
		args  []any
	)
	if s.dialect.name == postgres.name {
		query = fmt.Sprintf(`DELETE FROM %s WHERE collection = ANY(%s)`, s.q, s.p(1))
		args = []any{collections}
	} else {
		query = fmt.Sprintf(`DELETE FROM %s WHERE collection IN (%s)`, s.q, s.dialect.placeholders(1, len(collections)))
		for _, c := range collections {
			args = append(args, c)
		}
	}
	if _, err := s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("purge collections: %w", err)
	}
	return nil
}

func decode(raw []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
