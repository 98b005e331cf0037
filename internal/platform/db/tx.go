package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

// DBTxKey stores an open transaction for repositories to join.
const DBTxKey contextKey = "db_tx"

// TxFromContext returns the transaction carried by ctx, or nil when the
// caller is not inside RunInTx.
func TxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(DBTxKey).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// RunInTx executes fn inside a transaction. Repository methods called
// with the context fn receives join the same transaction, so a
// multi-statement operation commits or rolls back as one unit. The
// transaction commits when fn returns nil and rolls back otherwise.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, DBTxKey, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
