package store

import (
	"context"
	"errors"
	"fmt"

	serrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type pgTxKey struct{}

// PgTxManager implements TxManager with PostgreSQL transactions.
// The open pgx.Tx travels in the context so every PgStore call joins it.
type PgTxManager struct {
	db *pgxpool.Pool
}

// NewPgTxManager creates a new transaction manager over the connection pool.
func NewPgTxManager(dbp *pgxpool.Pool) *PgTxManager {
	return &PgTxManager{db: dbp}
}

// WithTransaction begins a transaction, runs fn and commits, or rolls back if fn fails.
// A call nested inside an open transaction joins it.
func (m *PgTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}
	return withTx(ctx, m.db, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, pgTxKey{}, tx))
	})
}

func withTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", serrors.ErrTransactionBegin, err)
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %v (cause: %w)", serrors.ErrTransactionRollback, rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", serrors.ErrTransactionCommit, err)
	}

	return nil
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx)
	return tx, ok
}

// pgStore is the base shared by the PostgreSQL stores.
type pgStore struct {
	db *pgxpool.Pool
}

// conn returns the transaction bound to ctx, or the pool.
func (p *pgStore) conn(ctx context.Context) DBTX {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return p.db
}

// withTransaction runs fn inside the transaction bound to ctx, or inside a new one.
func (p *pgStore) withTransaction(ctx context.Context, fn func(q DBTX) error) error {
	if tx, ok := txFromContext(ctx); ok {
		return fn(tx)
	}
	return withTx(ctx, p.db, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
