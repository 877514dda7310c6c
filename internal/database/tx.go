package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"restaurant-orders/internal/models"
)

type txKey struct{}

func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// WithinTx runs fn in a READ COMMITTED transaction bounded by the configured
// timeout. A ctx that already carries a transaction is reused as is.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	txCtx, cancel := context.WithTimeout(ctx, db.txTimeout)
	defer cancel()

	tx, err := db.Pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", translateError(err))
	}
	defer func() {
		rbCtx, rbCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer rbCancel()
		_ = tx.Rollback(rbCtx)
	}()

	if err := fn(withTx(txCtx, tx)); err != nil {
		return timedOut(ctx, txCtx, err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return timedOut(ctx, txCtx, fmt.Errorf("failed to commit transaction: %w", translateError(err)))
	}
	return nil
}

// timedOut classifies a transaction that hit its own deadline as a conflict:
// it was waiting on locks held by someone else.
func timedOut(parent, txCtx context.Context, err error) error {
	if errors.Is(txCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil && !errors.Is(err, models.ErrConflict) {
		return fmt.Errorf("transaction timed out: %w: %w", models.ErrConflict, err)
	}
	return err
}
