package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type txKey struct{}

// InjectTx returns ctx carrying tx. A nil tx leaves ctx untouched.
func InjectTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// ExtractTx returns the transaction carried by ctx, or nil.
func ExtractTx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// beginTx opens a savepoint inside the transaction already carried by ctx,
// so a payment record written while the customer lock is held commits or
// rolls back with it. Without one it starts a top-level transaction on pool.
func beginTx(ctx context.Context, pool txBeginner) (pgx.Tx, error) {
	if outer := ExtractTx(ctx); outer != nil {
		return outer.Begin(ctx)
	}
	return pool.Begin(ctx)
}
