package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/plaid"
)

func f64(v float64) *float64 { return &v }

func TestFilterDepository(t *testing.T) {
	tests := []struct {
		name string
		in   []plaid.Account
		want []domain.BankAccount
	}{
		{
			name: "keeps checking and savings",
			in: []plaid.Account{
				{ID: "a", Name: "Plaid Checking", Mask: "0000", Type: "depository", Subtype: "checking", Available: f64(100), Current: f64(110)},
				{ID: "b", Name: "Plaid Saving", Mask: "1111", Type: "depository", Subtype: "savings", Current: f64(210)},
				{ID: "c", Name: "Plaid Credit Card", Mask: "3333", Type: "credit", Subtype: "credit card", Current: f64(410)},
				{ID: "d", Name: "Plaid CD", Mask: "2222", Type: "depository", Subtype: "cd", Current: f64(1000)},
				{ID: "e", Name: "Plaid Student Loan", Type: "loan", Subtype: "student"},
				{ID: "f", Name: "Plaid IRA", Type: "investment", Subtype: "ira"},
			},
			want: []domain.BankAccount{
				{ID: "a", DisplayName: "Plaid Checking", Mask: "0000", Subtype: "checking", AvailableBalance: 100},
				{ID: "b", DisplayName: "Plaid Saving", Mask: "1111", Subtype: "savings", AvailableBalance: 210},
			},
		},
		{
			name: "no depository accounts",
			in: []plaid.Account{
				{ID: "c", Type: "credit", Subtype: "credit card"},
				{ID: "e", Type: "loan", Subtype: "mortgage"},
			},
			want: []domain.BankAccount{},
		},
		{
			name: "nothing linked",
			in:   nil,
			want: []domain.BankAccount{},
		},
		{
			name: "missing balances",
			in:   []plaid.Account{{ID: "a", Type: "depository", Subtype: "checking"}},
			want: []domain.BankAccount{{ID: "a", Subtype: "checking"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterDepository(tt.in)
			assert.Equal(t, tt.want, got)
			for _, acc := range got {
				assert.Contains(t, []string{"checking", "savings"}, acc.Subtype)
			}
		})
	}
}

func TestAccountResolverRequiresToken(t *testing.T) {
	lister := &fakeBankData{}
	resolver := NewAccountResolver(lister, zap.NewNop())

	_, err := resolver.ListAccounts(context.Background(), "")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Zero(t, lister.calls)

	accounts, err := resolver.ListAccounts(context.Background(), "access")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
