package pgx

import (
	"context"
	"errors"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DBTX is the subset of pgx operations the store needs. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so a Store can be bound either to the pool or to one
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// Store implements the resolution engine's persistence operations against
// PostgreSQL with pgvector. A Store holds exactly one DBTX handle; it never
// opens, commits or rolls back transactions on its own.
type Store struct {
	db DBTX
}

// New creates a Store bound to the given handle. Bind to a pgx.Tx to run all
// operations inside that transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// WithTx opens one transaction on the pool, hands a transaction-bound Store
// to fn, and commits if fn returns nil. Any error rolls the whole transaction
// back. This is the only place in the codebase that commits.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, st *Store) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, New(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var errNoRows = pgxv5.ErrNoRows

func isNoRows(err error) bool {
	return errors.Is(err, errNoRows)
}

func newPublicID() (string, error) {
	return gonanoid.New()
}
