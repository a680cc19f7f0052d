package workflow

import (
	"go.temporal.io/sdk/workflow"
)

const (
	PaymentWorkflow = "ProcessorACHPaymentWorkflow"
)

// WorkflowRegistrar is satisfied by a worker and by the test environment.
type WorkflowRegistrar interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
}

func RegisterWorkflows(c WorkflowRegistrar) {
	c.RegisterWorkflowWithOptions(paymentWorkflow, workflow.RegisterOptions{Name: PaymentWorkflow})
}
