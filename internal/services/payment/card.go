package payment

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/stripe"
)

type CardProcessor interface {
	CreateCardPayment(ctx context.Context, input *stripe.CreateCardPaymentInput) (*domain.CardPayment, error)
}

// CardStrategy charges a card through a PaymentIntent.
type CardStrategy struct {
	processor CardProcessor
	identity  domain.Identity
	logger    *zap.Logger
}

func NewCardStrategy(processor CardProcessor, identity domain.Identity, logger *zap.Logger) *CardStrategy {
	return &CardStrategy{
		processor: processor,
		identity:  identity,
		logger:    logger.With(zap.String("strategy", string(domain.StrategyCard))),
	}
}

func (s *CardStrategy) Name() domain.StrategyName {
	return domain.StrategyCard
}

func (s *CardStrategy) Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	intent, err := s.processor.CreateCardPayment(ctx, &stripe.CreateCardPaymentInput{
		Amount:          domain.ToMinorUnits(req.Amount),
		PaymentMethodID: req.PaymentMethodID,
		ReceiptEmail:    s.identity.Email,
		Description:     "Payment Portal card payment",
		IdempotencyKey:  uuid.NewString(),
	})
	if err != nil {
		s.logger.Error("payment intent failed", zap.Error(err))
		return nil, err
	}
	s.logger.Info("payment intent created",
		zap.String("payment_intent_id", intent.ID),
		zap.String("status", intent.Status))

	result := &domain.PaymentResult{
		TransactionID: intent.ID,
		Amount:        req.Amount,
	}

	switch intent.Status {
	case "succeeded":
		result.Status = domain.StatusCompleted
	case "processing":
		result.Status = domain.StatusPending
	case "requires_payment_method":
		if req.PaymentMethodID == "" {
			// awaiting card details from the browser
			result.Status = domain.StatusPending
			result.ClientSecret = intent.ClientSecret
			break
		}
		return nil, domain.NewProviderError("stripe", domain.KindRejection,
			"card payment was declined", intent.FailureReason, nil)
	case "requires_confirmation", "requires_action":
		result.Status = domain.StatusPending
		result.ClientSecret = intent.ClientSecret
	default:
		result.Status = domain.StatusFailed
	}
	return result, nil
}
