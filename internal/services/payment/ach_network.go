package payment

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/dwolla"
)

type ACHNetwork interface {
	CreateFundingSource(ctx context.Context, customerURL string, numbers domain.ACHNumbers) (domain.Resolved, error)
	GetFundingSource(ctx context.Context, fundingSourceURL string) (*dwolla.FundingSource, error)
	CreateTransfer(ctx context.Context, input *dwolla.CreateTransferInput) (*domain.Transfer, error)
}

// ACHNetworkStrategy moves money bank to bank over the ACH network into the
// merchant's configured destination funding source.
type ACHNetworkStrategy struct {
	bank        BankData
	network     ACHNetwork
	customers   *CustomerResolver
	destination string
	logger      *zap.Logger
}

func NewACHNetworkStrategy(bank BankData, network ACHNetwork, customers *CustomerResolver, destination string, logger *zap.Logger) *ACHNetworkStrategy {
	return &ACHNetworkStrategy{
		bank:        bank,
		network:     network,
		customers:   customers,
		destination: destination,
		logger:      logger.With(zap.String("strategy", string(domain.StrategyBankViaACHNetwork))),
	}
}

func (s *ACHNetworkStrategy) Name() domain.StrategyName {
	return domain.StrategyBankViaACHNetwork
}

func (s *ACHNetworkStrategy) Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	if s.destination == "" {
		return nil, &domain.PaymentError{
			Kind:     domain.KindConfiguration,
			Provider: "dwolla",
			Reason:   "destination funding source is not configured",
		}
	}

	account, err := selectBankAccount(ctx, s.bank, s.logger, req.BankToken, req.AccountID)
	if err != nil {
		return nil, err
	}

	customerURL, err := s.customers.Resolve(ctx)
	if err != nil {
		s.logger.Error("customer resolution failed", zap.Error(err))
		return nil, err
	}

	source, err := s.network.CreateFundingSource(ctx, customerURL, *account)
	if err != nil {
		s.logger.Error("funding source registration failed", zap.Error(err))
		return nil, err
	}
	s.logger.Info("funding source resolved",
		zap.String("funding_source", source.ID),
		zap.Stringer("outcome", source.Outcome))

	dest, err := s.network.GetFundingSource(ctx, s.destination)
	if err != nil {
		s.logger.Error("destination funding source lookup failed", zap.Error(err))
		return nil, err
	}
	if dest.Removed {
		return nil, &domain.PaymentError{
			Kind:           domain.KindConfiguration,
			Provider:       "dwolla",
			Reason:         "destination funding source has been removed",
			ProviderDetail: s.destination,
		}
	}

	transfer, err := s.network.CreateTransfer(ctx, &dwolla.CreateTransferInput{
		SourceURL:      source.ID,
		DestinationURL: dest.URL,
		Amount:         req.Amount,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		s.logger.Error("transfer failed", zap.Error(err))
		return nil, err
	}
	s.logger.Info("transfer created", zap.String("transfer_id", transfer.ID), zap.String("amount", transfer.Amount))

	return &domain.PaymentResult{
		TransactionID: transfer.ID,
		Amount:        req.Amount,
		Status:        domain.StatusPending,
	}, nil
}
