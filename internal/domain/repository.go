package domain

import "context"

// Repository stores local payment records. It is optional: without a database
// the provider is the only system of record.
type Repository interface {
	InsertPayment(ctx context.Context, record *PaymentRecord) error
	ListPayments(ctx context.Context, limit uint64) ([]*PaymentRecord, error)
}

// Locker serializes work per key. fn runs while the lock for key is held.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
