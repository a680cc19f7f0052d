package workflow

import (
	"context"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/temporal/activity"
)

type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Strategy runs processor ACH payments as a durable workflow and waits for its result.
type Strategy struct {
	client    WorkflowStarter
	taskQueue string
}

func NewStrategy(c WorkflowStarter, taskQueue string) *Strategy {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Strategy{client: c, taskQueue: taskQueue}
}

func (s *Strategy) Name() domain.StrategyName {
	return domain.StrategyBankViaProcessor
}

func (s *Strategy) Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	options := client.StartWorkflowOptions{
		ID:        "payment-" + uuid.NewString(),
		TaskQueue: s.taskQueue,
	}

	run, err := s.client.ExecuteWorkflow(ctx, options, PaymentWorkflow, PaymentWorkflowInput{
		BankToken: req.BankToken,
		AccountID: req.AccountID,
		Amount:    req.Amount,
	})
	if err != nil {
		return nil, &domain.PaymentError{
			Kind:           domain.KindTransient,
			Provider:       "temporal",
			Reason:         "failed to start payment workflow",
			ProviderDetail: err.Error(),
			Err:            err,
		}
	}

	var result *domain.PaymentResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, activity.FromWorkflowError(err)
	}
	return result, nil
}
