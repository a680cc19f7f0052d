package payment

import (
	"context"

	"github.com/Rhymond/go-money"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/dwolla"
	"github.com/GalaDe/payment-portal/internal/services/stripe"
)

const displayDateLayout = "Jan 2, 2006"

// HistorySource lists the most recent payments, newest first, amounts in minor units.
type HistorySource interface {
	ListCharges(ctx context.Context, limit int64) ([]domain.ChargeRecord, error)
}

// MinAmountPolicy hides entries strictly below Threshold. A zero threshold disables it.
type MinAmountPolicy struct {
	Threshold decimal.Decimal
}

func (p MinAmountPolicy) Allows(amount decimal.Decimal) bool {
	if !p.Threshold.IsPositive() {
		return true
	}
	return amount.GreaterThanOrEqual(p.Threshold)
}

type HistoryViewer struct {
	source   HistorySource
	pageSize int64
	policy   MinAmountPolicy
	logger   *zap.Logger
}

func NewHistoryViewer(source HistorySource, pageSize int64, policy MinAmountPolicy, logger *zap.Logger) *HistoryViewer {
	if pageSize <= 0 {
		pageSize = 25
	}
	return &HistoryViewer{
		source:   source,
		pageSize: pageSize,
		policy:   policy,
		logger:   logger,
	}
}

// ListPayments returns the display-ready history. On failure the returned
// slice is empty, never nil, so callers can render it alongside the error.
func (v *HistoryViewer) ListPayments(ctx context.Context) ([]domain.PaymentSummary, error) {
	records, err := v.source.ListCharges(ctx, v.pageSize)
	if err != nil {
		v.logger.Error("payment history fetch failed", zap.Error(err))
		return []domain.PaymentSummary{}, err
	}

	summaries := lo.FilterMap(records, func(r domain.ChargeRecord, _ int) (domain.PaymentSummary, bool) {
		s := toSummary(r)
		return s, v.policy.Allows(s.Amount)
	})
	if summaries == nil {
		summaries = []domain.PaymentSummary{}
	}
	return summaries, nil
}

func toSummary(r domain.ChargeRecord) domain.PaymentSummary {
	return domain.PaymentSummary{
		ID:      r.ID,
		Amount:  domain.FromMinorUnits(r.Amount),
		Display: money.New(r.Amount, money.USD).Display(),
		Date:    r.Created.Format(displayDateLayout),
		Status:  MapStatus(r.Status),
		Created: r.Created,
	}
}

// DwollaHistory lists the transfers of the configured identity's customer.
// An identity that never paid has no customer and an empty history.
type DwollaHistory struct {
	Service  dwolla.DwollaService
	Identity domain.Identity
}

func (h DwollaHistory) ListCharges(ctx context.Context, limit int64) ([]domain.ChargeRecord, error) {
	cust, err := h.Service.FindCustomerByEmail(ctx, h.Identity.Email)
	if err != nil {
		return nil, err
	}
	if cust == nil {
		return nil, nil
	}
	return h.Service.ListTransfers(ctx, cust.ID, limit)
}

// RecordsHistory reads the locally stored payment records.
type RecordsHistory struct {
	Repository domain.Repository
}

func (h RecordsHistory) ListCharges(ctx context.Context, limit int64) ([]domain.ChargeRecord, error) {
	records, err := h.Repository.ListPayments(ctx, uint64(limit))
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(r *domain.PaymentRecord, _ int) domain.ChargeRecord {
		return domain.ChargeRecord{
			ID:      r.TransactionID,
			Amount:  domain.ToMinorUnits(r.Amount),
			Status:  string(r.Status),
			Created: r.CreatedAt,
		}
	}), nil
}

var (
	_ HistorySource = stripe.StripeService(nil)
	_ HistorySource = DwollaHistory{}
	_ HistorySource = RecordsHistory{}
)
