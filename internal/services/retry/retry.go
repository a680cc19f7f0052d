package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
)

const (
	maxRetries      = 3
	initialInterval = 200 * time.Millisecond
	maxInterval     = 2 * time.Second
)

// Read runs an idempotent provider read, retrying only transient failures with
// exponential backoff. Writes must never go through here.
func Read(ctx context.Context, logger *zap.Logger, operation string, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = maxInterval

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		logger.Warn("retrying provider read",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}
