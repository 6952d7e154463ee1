// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// and Transactors that run a function inside a transaction.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transactor runs fn atomically. Repositories obtained for tx inside fn see
// and write the same transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// SQLTransactor wraps *sql.DB. Transactions aborted by Postgres with a
// serialization failure or deadlock are retried up to maxAttempts times.
type SQLTransactor struct {
	db          *sql.DB
	opts        *sql.TxOptions
	maxAttempts int
}

func NewSQLTransactor(db *sql.DB) *SQLTransactor {
	return &SQLTransactor{db: db, maxAttempts: 3}
}

// DB exposes the underlying pool for non-transactional reads.
func (t *SQLTransactor) DB() *sql.DB {
	return t.db
}

func (t *SQLTransactor) WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	var err error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		err = WithTx(ctx, t.db, t.opts, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

// IsRetryable reports whether err is a Postgres serialization_failure (40001)
// or deadlock_detected (40P01).
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// IsUniqueViolation reports whether err is a Postgres unique_violation (23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// LockingTransactor serialises all transactions with a mutex. It backs the
// in-memory repositories, which have no transactions of their own; fn
// receives a nil DBTX.
type LockingTransactor struct {
	mu sync.Mutex
}

func NewLockingTransactor() *LockingTransactor {
	return &LockingTransactor{}
}

func (t *LockingTransactor) WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx, nil)
}
