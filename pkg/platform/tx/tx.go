// Package tx carries a database/sql transaction through a context so the document
// backend's calls made inside a unit of work share it.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is the part of *sql.DB and *sql.Tx the relational backend uses.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type activeTx struct{}

// WithTx returns ctx carrying t. A nil t leaves ctx unchanged.
func WithTx(ctx context.Context, t *sql.Tx) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, activeTx{}, t)
}

// From returns the transaction ctx carries.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(activeTx{}).(*sql.Tx)
	return t, ok
}

// Conn picks the transaction in ctx, falling back to db.
func Conn(ctx context.Context, db *sql.DB) Querier {
	if t, ok := From(ctx); ok {
		return t
	}
	return db
}

// Run begins a transaction on db and calls fn with it in context. A nested Run joins the
// outer transaction instead of opening another one. fn's error rolls everything back.
func Run(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	t, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(WithTx(ctx, t)); err != nil {
		_ = t.Rollback()
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
