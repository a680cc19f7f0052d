package payment

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/plaid"
)

type AccountLister interface {
	ListAccounts(ctx context.Context, accessToken string) ([]plaid.Account, error)
}

// AccountResolver lists the payable bank accounts behind a bank token.
type AccountResolver struct {
	plaid  AccountLister
	logger *zap.Logger
}

func NewAccountResolver(lister AccountLister, logger *zap.Logger) *AccountResolver {
	return &AccountResolver{plaid: lister, logger: logger}
}

func (r *AccountResolver) ListAccounts(ctx context.Context, bankToken string) ([]domain.BankAccount, error) {
	if bankToken == "" {
		return nil, domain.NewValidationError("bankToken is required")
	}

	accounts, err := r.plaid.ListAccounts(ctx, bankToken)
	if err != nil {
		return nil, err
	}

	payable := FilterDepository(accounts)
	r.logger.Info("accounts listed",
		zap.Int("total", len(accounts)),
		zap.Int("payable", len(payable)))
	return payable, nil
}

// FilterDepository keeps checking and savings accounts only. The balance shown
// is the available balance, falling back to the current balance.
func FilterDepository(accounts []plaid.Account) []domain.BankAccount {
	depository := lo.Filter(accounts, func(a plaid.Account, _ int) bool {
		return a.Type == "depository" && (a.Subtype == "checking" || a.Subtype == "savings")
	})

	return lo.Map(depository, func(a plaid.Account, _ int) domain.BankAccount {
		return domain.BankAccount{
			ID:               a.ID,
			DisplayName:      a.Name,
			Mask:             a.Mask,
			Subtype:          a.Subtype,
			AvailableBalance: balanceOf(a),
		}
	})
}

func balanceOf(a plaid.Account) float64 {
	if a.Available != nil {
		return *a.Available
	}
	if a.Current != nil {
		return *a.Current
	}
	return 0
}

// selectAccount picks the explicitly requested account, else the first listed.
func selectAccount(numbers []domain.ACHNumbers, accountID string) (*domain.ACHNumbers, error) {
	if len(numbers) == 0 {
		return nil, domain.NewProviderError("plaid", domain.KindRejection,
			"no bank account with ACH numbers is linked", "", nil)
	}
	if accountID == "" {
		return &numbers[0], nil
	}

	match, ok := lo.Find(numbers, func(n domain.ACHNumbers) bool {
		return n.AccountID == accountID
	})
	if !ok {
		return nil, domain.NewValidationError("account " + accountID + " is not linked to this bank token")
	}
	return &match, nil
}
