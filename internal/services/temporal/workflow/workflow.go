package workflow

import (
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
)

const (
	DefaultActivityTimeout = 60 * time.Second
	DefaultTaskQueue       = "payment-task-queue"
)

var (
	// provider reads and idempotent creates
	RetryPolicy3Attempts = &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    3,
	}

	// provider writes without a provider-side idempotency guarantee
	RetryPolicy1Attempt = &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Second * 100,
		MaximumAttempts:    1,
	}
)

func NewWorker(t client.Client, taskQueue string) worker.Worker {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return worker.New(t, taskQueue, worker.Options{
		MaxConcurrentActivityTaskPollers: 4,
		MaxConcurrentWorkflowTaskPollers: 4,
	})
}
