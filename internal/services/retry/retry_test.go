package retry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
)

func TestReadRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Read(context.Background(), zap.NewNop(), "accounts", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return domain.NewProviderError("plaid", domain.KindTransient, "rate limited", "", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestReadStopsOnPermanentErrors(t *testing.T) {
	calls := 0
	rejection := domain.NewProviderError("plaid", domain.KindRejection, "invalid access token", "", nil)
	err := Read(context.Background(), zap.NewNop(), "accounts", func(ctx context.Context) error {
		calls++
		return rejection
	})
	require.ErrorIs(t, err, rejection)
	assert.Equal(t, 1, calls)
}

func TestReadGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := Read(context.Background(), zap.NewNop(), "accounts", func(ctx context.Context) error {
		calls++
		return domain.NewProviderError("plaid", domain.KindTimeout, "timed out", "", nil)
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindTimeout, domain.KindOf(err))
	assert.Equal(t, maxRetries+1, calls)
}
