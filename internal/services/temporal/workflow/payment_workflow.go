package workflow

import (
	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/workflow"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/payment"
	"github.com/GalaDe/payment-portal/internal/services/temporal/activity"
)

type PaymentWorkflowInput struct {
	BankToken string          `json:"bank_token"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

/*
paymentWorkflow runs the processor ACH steps as separate activities so a
crashed payment resumes from the last completed step:
 1. select the bank account
 2. create the processor bank token
 3. resolve the customer
 4. attach the source (already-attached resolves to the existing one)
 5. verify the source (sandbox only)
 6. charge, keyed on the workflow id so a resumed charge is not duplicated
*/
func paymentWorkflow(ctx workflow.Context, input PaymentWorkflowInput) (*domain.PaymentResult, error) {
	logger := workflow.GetLogger(ctx)

	readCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: DefaultActivityTimeout,
		RetryPolicy:         RetryPolicy3Attempts,
	})
	writeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: DefaultActivityTimeout,
		RetryPolicy:         RetryPolicy1Attempt,
	})

	bankInput := activity.BankAccountInput{BankToken: input.BankToken, AccountID: input.AccountID}
	if err := workflow.ExecuteActivity(readCtx, activity.SelectBankAccountActivity, bankInput).Get(ctx, &bankInput.AccountID); err != nil {
		return nil, err
	}

	var token string
	if err := workflow.ExecuteActivity(writeCtx, activity.CreateBankTokenActivity, bankInput).Get(ctx, &token); err != nil {
		return nil, err
	}

	// the customer create carries an idempotency key derived from the email
	var customerID string
	if err := workflow.ExecuteActivity(readCtx, activity.ResolveCustomerActivity).Get(ctx, &customerID); err != nil {
		return nil, err
	}

	var source *domain.BankSource
	attach := activity.AttachSourceInput{CustomerID: customerID, Token: token}
	if err := workflow.ExecuteActivity(writeCtx, activity.AttachSourceActivity, attach).Get(ctx, &source); err != nil {
		return nil, err
	}

	verify := activity.VerifySourceInput{CustomerID: customerID, Source: source}
	if err := workflow.ExecuteActivity(writeCtx, activity.VerifySourceActivity, verify).Get(ctx, &source); err != nil {
		return nil, err
	}

	charge := payment.ChargeInput{
		CustomerID:     customerID,
		SourceID:       source.ID,
		Amount:         input.Amount,
		IdempotencyKey: ChargeIdempotencyKey(workflow.GetInfo(ctx).WorkflowExecution.ID),
	}
	var result *domain.PaymentResult
	if err := workflow.ExecuteActivity(writeCtx, activity.CreateACHChargeActivity, charge).Get(ctx, &result); err != nil {
		return nil, err
	}

	logger.Info("payment workflow finished", "TransactionID", result.TransactionID, "Status", result.Status)
	return result, nil
}

func ChargeIdempotencyKey(workflowID string) string {
	return workflowID + "-charge"
}
