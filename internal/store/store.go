// Package store implements the menu.Store persistence boundary on
// PostgreSQL via pgx. Every write keys on the restaurant plus a stable
// identity (category id, item external key, add-on id + state) so each
// statement is an idempotent upsert; the one multi-row atomic operation,
// add-on promotion, runs inside a single transaction.
package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the subset of pgx operations the store needs.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store is the PostgreSQL-backed implementation of menu.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates any missing tables and indexes. Safe to run on every
// startup; all statements are IF NOT EXISTS.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
