package postgres

import (
	"context"
	"fmt"

	"github.com/GalaDe/payment-portal/internal/domain"
)

// AdvisoryLocker serializes work per key across every process sharing the
// database. The lock is transaction scoped and released on commit or rollback.
type AdvisoryLocker struct {
	tx *PostgresTransactor
}

func NewAdvisoryLocker(tx *PostgresTransactor) *AdvisoryLocker {
	return &AdvisoryLocker{tx: tx}
}

func (l *AdvisoryLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := l.tx.Querier(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
			if kind, ok := domain.TransportKind(err); ok {
				return &domain.PaymentError{Kind: kind, Reason: "gave up waiting for customer lock", ProviderDetail: key, Err: err}
			}
			return fmt.Errorf("failed to acquire advisory lock %q: %w", key, err)
		}
		return fn(ctx)
	})
}
