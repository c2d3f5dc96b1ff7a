package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txRetries bounds retries after a serialization failure. Concurrent
// postings that lock overlapping account rows can abort each other under
// RepeatableRead; the aborted side is safe to rerun.
const txRetries = 3

// WithTx executes fn inside a RepeatableRead transaction and retries it
// when the transaction aborts with a serialization failure. fn must be
// safe to run more than once up to its commit.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt <= txRetries; attempt++ {
		err = runTx(ctx, pool, fn)
		if err == nil || !serializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("db: tx retries exhausted: %w", err)
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit tx: %w", err)
	}
	return nil
}

func serializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}
