package agent

import (
	"context"
)

// QueryRunner runs a single user query to an answer
type QueryRunner interface {
	RunQuery(ctx context.Context, input string) (string, error)
}

// Orchestrator is the entry seam between the execution graph and the agents.
// It currently forwards every query to one QueryRunner.
type Orchestrator struct {
	agent QueryRunner
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(agent QueryRunner) *Orchestrator {
	return &Orchestrator{agent: agent}
}

// HandleQuery forwards input unchanged and returns the answer or error unchanged
func (o *Orchestrator) HandleQuery(ctx context.Context, input string) (string, error) {
	return o.agent.RunQuery(ctx, input)
}
