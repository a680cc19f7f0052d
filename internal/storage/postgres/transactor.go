package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
)

// Querier is the part of pgxpool.Pool and pgx.Tx the repositories use.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type PostgresTransactor struct {
	conn   *Postgres
	logger *zap.Logger
}

var _ domain.Transactor = (*PostgresTransactor)(nil)

func NewPostgresTransactor(conn *Postgres, logger *zap.Logger) *PostgresTransactor {
	return &PostgresTransactor{conn: conn, logger: logger}
}

// WithinTransaction runs txFunc within a transaction, nested as a savepoint
// when ctx already carries one. It commits when txFunc returns nil and rolls
// back otherwise.
func (p *PostgresTransactor) WithinTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error {
	tx, err := beginTx(ctx, p.conn.Pool)
	if err != nil {
		return fmt.Errorf("error begin tx: %w", err)
	}

	// run callback
	err = txFunc(InjectTx(ctx, tx))
	if err != nil {
		// if err, rollback
		if errRollback := tx.Rollback(ctx); errRollback != nil {
			p.logger.Warn("rollback tx", zap.Error(errRollback))
		}
		return err
	}
	// if no err, commit
	if errCommit := tx.Commit(ctx); errCommit != nil {
		return fmt.Errorf("commit tx: %w", errCommit)
	}

	return nil
}

// Querier returns the transaction carried by ctx, else the pool.
func (p *PostgresTransactor) Querier(ctx context.Context) Querier {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return p.conn.Pool
}
