package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/payment"
	"github.com/GalaDe/payment-portal/internal/services/stripe"
	"github.com/GalaDe/payment-portal/internal/services/temporal/activity"
)

type bankStub struct{}

func (bankStub) GetACHNumbers(context.Context, string) ([]domain.ACHNumbers, error) {
	return []domain.ACHNumbers{{AccountID: "acc_1", AccountNumber: "1111", RoutingNumber: "011401533", Subtype: "checking"}}, nil
}

func (bankStub) CreateStripeToken(_ context.Context, _, accountID string) (string, error) {
	return "btok_" + accountID, nil
}

type processorStub struct {
	mu        sync.Mutex
	chargeErr error
	charges   []*stripe.CreateACHChargeInput
}

func (p *processorStub) AttachBankSource(context.Context, string, string) (domain.Resolved, *domain.BankSource, error) {
	return domain.AlreadyExists("ba_1"), &domain.BankSource{ID: "ba_1", Status: "new"}, nil
}

func (p *processorStub) VerifyBankSource(_ context.Context, _, sourceID string) (*domain.BankSource, error) {
	return &domain.BankSource{ID: sourceID, Status: "verified"}, nil
}

func (p *processorStub) CreateACHCharge(_ context.Context, input *stripe.CreateACHChargeInput) (*domain.ACHCharge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.charges = append(p.charges, input)
	if p.chargeErr != nil {
		return nil, p.chargeErr
	}
	return &domain.ACHCharge{ID: "py_1", Amount: input.Amount, Status: "pending"}, nil
}

func (p *processorStub) IsSandbox() bool { return true }

type directoryStub struct{}

func (directoryStub) Provider() string { return "stripe" }

func (directoryStub) FindCustomer(context.Context, domain.Identity) (string, error) {
	return "cus_1", nil
}

func (directoryStub) CreateCustomer(context.Context, domain.Identity) (domain.Resolved, error) {
	return domain.Resolved{}, errors.New("unexpected create")
}

type PaymentWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env       *testsuite.TestWorkflowEnvironment
	processor *processorStub
}

func TestPaymentWorkflowSuite(t *testing.T) {
	suite.Run(t, new(PaymentWorkflowSuite))
}

func (s *PaymentWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.processor = &processorStub{}

	customers := payment.NewCustomerResolver(directoryStub{}, domain.Identity{Email: "payer@example.com"}, nil, zap.NewNop())
	strategy := payment.NewProcessorACHStrategy(bankStub{}, s.processor, customers, zap.NewNop())

	activity.NewTemporalActivityPort(strategy).RegisterActivities(s.env)
	RegisterWorkflows(s.env)
}

func (s *PaymentWorkflowSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func (s *PaymentWorkflowSuite) TestChargesWithWorkflowKey() {
	s.env.ExecuteWorkflow(PaymentWorkflow, PaymentWorkflowInput{
		BankToken: "access",
		Amount:    decimal.RequireFromString("19.995"),
	})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result *domain.PaymentResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal("py_1", result.TransactionID)
	s.Equal(domain.StatusPending, result.Status)
	s.True(decimal.RequireFromString("19.995").Equal(result.Amount))

	s.Require().Len(s.processor.charges, 1)
	charge := s.processor.charges[0]
	s.Equal(int64(2000), charge.Amount)
	s.Equal("cus_1", charge.CustomerID)
	s.Equal("ba_1", charge.SourceID)
	s.Equal(ChargeIdempotencyKey(defaultTestWorkflowID), charge.IdempotencyKey)
}

func (s *PaymentWorkflowSuite) TestRejectedChargeIsNotRetried() {
	s.processor.chargeErr = domain.NewProviderError("stripe", domain.KindRejection, "failed to create charge", "account_closed: The bank account has been closed.", nil)

	s.env.ExecuteWorkflow(PaymentWorkflow, PaymentWorkflowInput{
		BankToken: "access",
		Amount:    decimal.NewFromInt(50),
	})

	s.True(s.env.IsWorkflowCompleted())
	err := activity.FromWorkflowError(s.env.GetWorkflowError())

	var pe *domain.PaymentError
	s.Require().ErrorAs(err, &pe)
	s.Equal(domain.KindRejection, pe.Kind)
	s.Equal("stripe", pe.Provider)
	s.Equal("failed to create charge", pe.Reason)
	s.Equal("account_closed: The bank account has been closed.", pe.ProviderDetail)
	s.Len(s.processor.charges, 1)
}

// the test environment's workflow id when none is set
const defaultTestWorkflowID = "default-test-workflow-id"

func TestErrorRoundTrip(t *testing.T) {
	orig := domain.NewProviderError("plaid", domain.KindTransient, "failed to get accounts", "RATE_LIMIT", nil)

	back := activity.FromWorkflowError(activity.ToApplicationError(orig))

	var pe *domain.PaymentError
	require.ErrorAs(t, back, &pe)
	assert.Equal(t, domain.KindTransient, pe.Kind)
	assert.Equal(t, "plaid", pe.Provider)
	assert.Equal(t, "RATE_LIMIT", pe.ProviderDetail)

	assert.Nil(t, activity.ToApplicationError(nil))
	assert.Equal(t, domain.KindUnknown, domain.KindOf(activity.FromWorkflowError(errors.New("boom"))))
}
