package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/stripe"
)

// BankData is the bank-linking provider as seen by the bank strategies.
type BankData interface {
	GetACHNumbers(ctx context.Context, accessToken string) ([]domain.ACHNumbers, error)
	CreateStripeToken(ctx context.Context, accessToken, accountID string) (string, error)
}

type ACHProcessor interface {
	AttachBankSource(ctx context.Context, customerID, bankAccountToken string) (domain.Resolved, *domain.BankSource, error)
	VerifyBankSource(ctx context.Context, customerID, sourceID string) (*domain.BankSource, error)
	CreateACHCharge(ctx context.Context, input *stripe.CreateACHChargeInput) (*domain.ACHCharge, error)
	IsSandbox() bool
}

/*
ProcessorACHStrategy debits a linked bank account over the card processor's
ACH rails. Each step is exported so a workflow engine can run them one by one
and resume after the last completed step.
*/
type ProcessorACHStrategy struct {
	bank      BankData
	processor ACHProcessor
	customers *CustomerResolver
	logger    *zap.Logger
}

func NewProcessorACHStrategy(bank BankData, processor ACHProcessor, customers *CustomerResolver, logger *zap.Logger) *ProcessorACHStrategy {
	return &ProcessorACHStrategy{
		bank:      bank,
		processor: processor,
		customers: customers,
		logger:    logger.With(zap.String("strategy", string(domain.StrategyBankViaProcessor))),
	}
}

func (s *ProcessorACHStrategy) Name() domain.StrategyName {
	return domain.StrategyBankViaProcessor
}

func (s *ProcessorACHStrategy) Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	account, err := s.SelectAccount(ctx, req.BankToken, req.AccountID)
	if err != nil {
		return nil, err
	}

	token, err := s.CreateBankToken(ctx, req.BankToken, account.AccountID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ResolveCustomer(ctx)
	if err != nil {
		return nil, err
	}

	source, err := s.AttachSource(ctx, customerID, token)
	if err != nil {
		return nil, err
	}

	source, err = s.VerifySource(ctx, customerID, source)
	if err != nil {
		return nil, err
	}

	return s.Charge(ctx, &ChargeInput{
		CustomerID:     customerID,
		SourceID:       source.ID,
		Amount:         req.Amount,
		IdempotencyKey: uuid.NewString(),
	})
}

// SelectAccount fetches ACH numbers and picks the requested account, else the first.
func (s *ProcessorACHStrategy) SelectAccount(ctx context.Context, bankToken, accountID string) (*domain.ACHNumbers, error) {
	return selectBankAccount(ctx, s.bank, s.logger, bankToken, accountID)
}

func (s *ProcessorACHStrategy) CreateBankToken(ctx context.Context, bankToken, accountID string) (string, error) {
	token, err := s.bank.CreateStripeToken(ctx, bankToken, accountID)
	if err != nil {
		s.logger.Error("bank account token failed", zap.Error(err))
		return "", err
	}
	s.logger.Info("bank account token created", zap.String("account_id", accountID))
	return token, nil
}

func (s *ProcessorACHStrategy) ResolveCustomer(ctx context.Context) (string, error) {
	id, err := s.customers.Resolve(ctx)
	if err != nil {
		s.logger.Error("customer resolution failed", zap.Error(err))
		return "", err
	}
	return id, nil
}

// AttachSource attaches the bank token to the customer. An account that is
// already attached resolves to the existing source.
func (s *ProcessorACHStrategy) AttachSource(ctx context.Context, customerID, token string) (*domain.BankSource, error) {
	res, source, err := s.processor.AttachBankSource(ctx, customerID, token)
	if err != nil {
		s.logger.Error("bank source attach failed", zap.String("customer_id", customerID), zap.Error(err))
		return nil, err
	}

	switch res.Outcome {
	case domain.OutcomeAlreadyExists:
		s.logger.Info("reusing existing bank source", zap.String("source_id", res.ID))
	default:
		s.logger.Info("bank source attached", zap.String("source_id", res.ID))
	}
	return source, nil
}

// VerifySource completes micro-deposit verification of an unverified source
// in sandbox. Outside sandbox the source is returned unchanged.
func (s *ProcessorACHStrategy) VerifySource(ctx context.Context, customerID string, source *domain.BankSource) (*domain.BankSource, error) {
	if source.Verified() || !s.processor.IsSandbox() {
		return source, nil
	}

	verified, err := s.processor.VerifyBankSource(ctx, customerID, source.ID)
	if err != nil {
		s.logger.Error("bank source verification failed", zap.String("source_id", source.ID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("bank source verified", zap.String("source_id", verified.ID), zap.String("status", verified.Status))
	return verified, nil
}

type ChargeInput struct {
	CustomerID     string          `json:"customer_id"`
	SourceID       string          `json:"source_id"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
}

func (s *ProcessorACHStrategy) Charge(ctx context.Context, input *ChargeInput) (*domain.PaymentResult, error) {
	charge, err := s.processor.CreateACHCharge(ctx, &stripe.CreateACHChargeInput{
		CustomerID:     input.CustomerID,
		SourceID:       input.SourceID,
		Amount:         domain.ToMinorUnits(input.Amount),
		Description:    "Payment Portal ACH payment",
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		s.logger.Error("charge failed", zap.Error(err))
		return nil, err
	}
	s.logger.Info("charge created", zap.String("charge_id", charge.ID), zap.String("status", charge.Status))

	return &domain.PaymentResult{
		TransactionID: charge.ID,
		Amount:        input.Amount,
		Status:        MapStatus(charge.Status),
	}, nil
}

// MapStatus maps provider success vocabulary to completed and passes any
// other status through unchanged.
func MapStatus(status string) domain.PaymentStatus {
	switch status {
	case "succeeded", "processed":
		return domain.StatusCompleted
	}
	return domain.PaymentStatus(status)
}

func selectBankAccount(ctx context.Context, bank BankData, logger *zap.Logger, bankToken, accountID string) (*domain.ACHNumbers, error) {
	numbers, err := bank.GetACHNumbers(ctx, bankToken)
	if err != nil {
		logger.Error("ACH numbers lookup failed", zap.Error(err))
		return nil, err
	}

	account, err := selectAccount(numbers, accountID)
	if err != nil {
		return nil, err
	}
	logger.Info("bank account selected", zap.String("account_id", account.AccountID))
	return account, nil
}
