package state

import (
	"fmt"

	"finquery/backend/internal/constants"
)

// Status tracks a graph run's lifecycle
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// GraphState is the mapping of named values threaded through graph nodes.
// It is created per Execute call and discarded when the run ends.
type GraphState map[string]string

// NewGraphState seeds a state with the user query under the input key
func NewGraphState(input string) GraphState {
	return GraphState{constants.GraphInputKey: input}
}

// Input returns the user query
func (gs GraphState) Input() string {
	return gs[constants.GraphInputKey]
}

// Output returns the final answer, if a node has produced one
func (gs GraphState) Output() (string, bool) {
	out, ok := gs[constants.GraphOutputKey]
	return out, ok
}

// SetOutput records the final answer
func (gs GraphState) SetOutput(out string) {
	gs[constants.GraphOutputKey] = out
}

// Validate checks the recognized input key is present
func (gs GraphState) Validate() error {
	if _, ok := gs[constants.GraphInputKey]; !ok {
		return ErrInvalidGraphState{Field: constants.GraphInputKey, Reason: "missing"}
	}
	return nil
}

type ErrInvalidGraphState struct {
	Field  string
	Reason string
}

func (e ErrInvalidGraphState) Error() string {
	return fmt.Sprintf("invalid graph state: %s - %s", e.Field, e.Reason)
}
