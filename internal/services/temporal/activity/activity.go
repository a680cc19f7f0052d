package activity

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/payment"
)

// ActivityRegistrar is satisfied by a worker and by the test environment.
type ActivityRegistrar interface {
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

type TemporalActivityPort struct {
	strategy *payment.ProcessorACHStrategy
}

func NewTemporalActivityPort(strategy *payment.ProcessorACHStrategy) *TemporalActivityPort {
	return &TemporalActivityPort{strategy: strategy}
}

const (
	SelectBankAccountActivity = "SelectBankAccountActivity"
	CreateBankTokenActivity   = "CreateBankTokenActivity"
	ResolveCustomerActivity   = "ResolveCustomerActivity"
	AttachSourceActivity      = "AttachSourceActivity"
	VerifySourceActivity      = "VerifySourceActivity"
	CreateACHChargeActivity   = "CreateACHChargeActivity"
)

func (a *TemporalActivityPort) RegisterActivities(w ActivityRegistrar) {
	w.RegisterActivityWithOptions(a.selectBankAccountActivity, activity.RegisterOptions{Name: SelectBankAccountActivity})
	w.RegisterActivityWithOptions(a.createBankTokenActivity, activity.RegisterOptions{Name: CreateBankTokenActivity})
	w.RegisterActivityWithOptions(a.resolveCustomerActivity, activity.RegisterOptions{Name: ResolveCustomerActivity})
	w.RegisterActivityWithOptions(a.attachSourceActivity, activity.RegisterOptions{Name: AttachSourceActivity})
	w.RegisterActivityWithOptions(a.verifySourceActivity, activity.RegisterOptions{Name: VerifySourceActivity})
	w.RegisterActivityWithOptions(a.createACHChargeActivity, activity.RegisterOptions{Name: CreateACHChargeActivity})
}

type BankAccountInput struct {
	BankToken string `json:"bank_token"`
	AccountID string `json:"account_id"`
}

// Only the account id leaves the activity; ACH numbers stay out of workflow history.
func (a *TemporalActivityPort) selectBankAccountActivity(ctx context.Context, input BankAccountInput) (string, error) {
	account, err := a.strategy.SelectAccount(ctx, input.BankToken, input.AccountID)
	if err != nil {
		return "", ToApplicationError(err)
	}
	return account.AccountID, nil
}

func (a *TemporalActivityPort) createBankTokenActivity(ctx context.Context, input BankAccountInput) (string, error) {
	token, err := a.strategy.CreateBankToken(ctx, input.BankToken, input.AccountID)
	return token, ToApplicationError(err)
}

func (a *TemporalActivityPort) resolveCustomerActivity(ctx context.Context) (string, error) {
	id, err := a.strategy.ResolveCustomer(ctx)
	return id, ToApplicationError(err)
}

type AttachSourceInput struct {
	CustomerID string `json:"customer_id"`
	Token      string `json:"token"`
}

func (a *TemporalActivityPort) attachSourceActivity(ctx context.Context, input AttachSourceInput) (*domain.BankSource, error) {
	source, err := a.strategy.AttachSource(ctx, input.CustomerID, input.Token)
	return source, ToApplicationError(err)
}

type VerifySourceInput struct {
	CustomerID string             `json:"customer_id"`
	Source     *domain.BankSource `json:"source"`
}

func (a *TemporalActivityPort) verifySourceActivity(ctx context.Context, input VerifySourceInput) (*domain.BankSource, error) {
	source, err := a.strategy.VerifySource(ctx, input.CustomerID, input.Source)
	return source, ToApplicationError(err)
}

func (a *TemporalActivityPort) createACHChargeActivity(ctx context.Context, input payment.ChargeInput) (*domain.PaymentResult, error) {
	result, err := a.strategy.Charge(ctx, &input)
	return result, ToApplicationError(err)
}

// errorDetail travels with the application error so callers can rebuild the PaymentError.
type errorDetail struct {
	Provider       string `json:"provider"`
	Reason         string `json:"reason"`
	ProviderDetail string `json:"provider_detail"`
}

// ToApplicationError carries a PaymentError across the workflow boundary.
// Only transient kinds stay retryable.
func ToApplicationError(err error) error {
	if err == nil {
		return nil
	}
	var pe *domain.PaymentError
	if !errors.As(err, &pe) {
		return err
	}

	detail := errorDetail{Provider: pe.Provider, Reason: pe.Reason, ProviderDetail: pe.ProviderDetail}
	if domain.IsTransient(pe) {
		return temporal.NewApplicationError(pe.Error(), string(pe.Kind), detail)
	}
	return temporal.NewNonRetryableApplicationError(pe.Error(), string(pe.Kind), nil, detail)
}

// FromWorkflowError recovers the PaymentError from a workflow or activity failure.
func FromWorkflowError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		var detail errorDetail
		if appErr.HasDetails() {
			_ = appErr.Details(&detail)
		}
		if detail.Reason == "" {
			detail.Reason = appErr.Error()
		}
		return &domain.PaymentError{
			Kind:           domain.ErrorKind(appErr.Type()),
			Provider:       detail.Provider,
			Reason:         detail.Reason,
			ProviderDetail: detail.ProviderDetail,
			Err:            err,
		}
	}

	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return &domain.PaymentError{Kind: domain.KindTimeout, Reason: "payment step timed out", Err: err}
	}
	return &domain.PaymentError{Kind: domain.KindUnknown, Reason: "payment workflow failed", ProviderDetail: err.Error(), Err: err}
}
