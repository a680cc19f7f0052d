package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/utils"
)

// Strategy executes one payment end to end. The first failing step aborts the
// whole payment and is returned; strategies never retry a write.
type Strategy interface {
	Name() domain.StrategyName
	Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error)
}

// Initiator validates payment requests and dispatches them to the strategy
// configured for the requested method.
type Initiator struct {
	card    Strategy
	bank    Strategy
	records domain.Repository
	logger  *zap.Logger
}

type InitiatorOption func(*Initiator)

// WithRecords stores every successful payment in repo.
func WithRecords(repo domain.Repository) InitiatorOption {
	return func(i *Initiator) {
		i.records = repo
	}
}

func NewInitiator(card, bank Strategy, logger *zap.Logger, opts ...InitiatorOption) *Initiator {
	i := &Initiator{
		card:   card,
		bank:   bank,
		logger: logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Validate rejects a request before any provider is contacted.
func Validate(req *domain.PaymentRequest) error {
	if req == nil {
		return domain.NewValidationError("payment request is required")
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return err
	}
	switch req.Method {
	case domain.MethodCard:
	case domain.MethodBank:
		if req.BankToken == "" {
			return domain.NewValidationError("bankToken is required for bank payments")
		}
	default:
		return domain.NewValidationError("method must be BANK or CARD")
	}
	return nil
}

func (i *Initiator) Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	strategy := i.bank
	if req.Method == domain.MethodCard {
		strategy = i.card
	}
	if strategy == nil {
		return nil, &domain.PaymentError{
			Kind:   domain.KindConfiguration,
			Reason: "no strategy configured for method " + string(req.Method),
		}
	}

	logger := i.logger.With(
		zap.String("strategy", string(strategy.Name())),
		zap.String("amount", req.Amount.String()))
	logger.Info("payment started")

	result, err := strategy.Pay(ctx, req)
	if err != nil {
		logger.Error("payment failed", zap.Error(err))
		return nil, err
	}
	result.Strategy = strategy.Name()

	logger.Info("payment finished",
		zap.String("transaction_id", result.TransactionID),
		zap.String("status", string(result.Status)))

	i.record(ctx, req, result)
	return result, nil
}

// record keeps a local trace of the payment. The money has already moved, so
// a storage failure is logged and never reported to the payer.
func (i *Initiator) record(ctx context.Context, req *domain.PaymentRequest, result *domain.PaymentResult) {
	if i.records == nil {
		return
	}

	rec := &domain.PaymentRecord{
		ID:            uuid.NewString(),
		TransactionID: result.TransactionID,
		Method:        req.Method,
		Strategy:      result.Strategy,
		Amount:        result.Amount,
		Status:        result.Status,
		BankAccountID: utils.StringToNull(req.AccountID),
		CreatedAt:     time.Now().UTC(),
	}
	if err := i.records.InsertPayment(ctx, rec); err != nil {
		i.logger.Warn("failed to record payment",
			zap.String("transaction_id", result.TransactionID), zap.Error(err))
	}
}
