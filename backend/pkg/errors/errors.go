package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeAgent represents reasoning agent / LLM errors
	ErrorTypeAgent ErrorType = "agent"
	// ErrorTypeMemory represents vector memory errors
	ErrorTypeMemory ErrorType = "memory"
	// ErrorTypeDatabase represents relational database errors
	ErrorTypeDatabase ErrorType = "database"
	// ErrorTypeTool represents tool execution errors
	ErrorTypeTool ErrorType = "tool"
	// ErrorTypeGraph represents execution graph errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrorType reports the category. Typed errors embedding *BaseError inherit it.
func (e *BaseError) ErrorType() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Memory Errors

// ErrMemoryIndexLoad is returned when the vector index cannot be loaded at construction
type ErrMemoryIndexLoad struct {
	*BaseError
	Path       string
	Collection string
}

func NewMemoryIndexLoad(path, collection string, err error) *ErrMemoryIndexLoad {
	return &ErrMemoryIndexLoad{
		BaseError:  NewBaseError(ErrorTypeMemory, fmt.Sprintf("failed to load vector index %s (collection %q)", path, collection), err),
		Path:       path,
		Collection: collection,
	}
}

// ErrMemoryRetrievalFailed is returned when a similarity search fails
type ErrMemoryRetrievalFailed struct {
	*BaseError
	Query string
}

func NewMemoryRetrievalFailed(query string, err error) *ErrMemoryRetrievalFailed {
	return &ErrMemoryRetrievalFailed{
		BaseError: NewBaseError(ErrorTypeMemory, "similarity search failed", err),
		Query:     query,
	}
}

// Database Errors

// ErrDatabaseOpen is returned when the relational database cannot be opened
type ErrDatabaseOpen struct {
	*BaseError
	Path string
}

func NewDatabaseOpen(path string, err error) *ErrDatabaseOpen {
	return &ErrDatabaseOpen{
		BaseError: NewBaseError(ErrorTypeDatabase, fmt.Sprintf("failed to open database: %s", path), err),
		Path:      path,
	}
}

// ErrDatabaseQuery is returned when a SQL statement fails
type ErrDatabaseQuery struct {
	*BaseError
	Query string
}

func NewDatabaseQuery(query string, err error) *ErrDatabaseQuery {
	return &ErrDatabaseQuery{
		BaseError: NewBaseError(ErrorTypeDatabase, "query failed", err),
		Query:     query,
	}
}

// Agent Errors

// ErrAgentExecutionFailed is returned when the reasoning agent cannot produce an answer
type ErrAgentExecutionFailed struct {
	*BaseError
	Steps int
}

func NewAgentExecutionFailed(steps int, err error) *ErrAgentExecutionFailed {
	return &ErrAgentExecutionFailed{
		BaseError: NewBaseError(ErrorTypeAgent, fmt.Sprintf("agent execution failed after %d steps", steps), err),
		Steps:     steps,
	}
}

// ErrAgentStepBudgetExceeded is returned when the agent keeps calling tools past its budget
type ErrAgentStepBudgetExceeded struct {
	*BaseError
	MaxSteps int
}

func NewAgentStepBudgetExceeded(maxSteps int) *ErrAgentStepBudgetExceeded {
	return &ErrAgentStepBudgetExceeded{
		BaseError: NewBaseError(ErrorTypeAgent, fmt.Sprintf("agent exceeded step budget (%d)", maxSteps), nil),
		MaxSteps:  maxSteps,
	}
}

// ErrAgentLLMFailed is returned when LLM request fails
type ErrAgentLLMFailed struct {
	*BaseError
	Model     string
	Attempts  int
	Retryable bool
}

func NewAgentLLMFailed(model string, attempts int, retryable bool, err error) *ErrAgentLLMFailed {
	return &ErrAgentLLMFailed{
		BaseError: NewBaseError(ErrorTypeAgent, fmt.Sprintf("LLM request failed after %d attempts", attempts), err),
		Model:     model,
		Attempts:  attempts,
		Retryable: retryable,
	}
}

// ErrAgentNoResponse is returned when LLM returns no response
var ErrAgentNoResponse = NewBaseError(ErrorTypeAgent, "no response from LLM", nil)

// Tool Errors

// ErrToolExecutionFailed is returned when tool execution fails
type ErrToolExecutionFailed struct {
	*BaseError
	ToolName string
	Reason   string
}

func NewToolExecutionFailed(toolName, reason string, err error) *ErrToolExecutionFailed {
	return &ErrToolExecutionFailed{
		BaseError: NewBaseError(ErrorTypeTool, fmt.Sprintf("tool execution failed: %s", toolName), err),
		ToolName:  toolName,
		Reason:    reason,
	}
}

// ErrToolNotFound is returned when a requested tool is not found
type ErrToolNotFound struct {
	*BaseError
	ToolName string
}

func NewToolNotFound(toolName string) *ErrToolNotFound {
	return &ErrToolNotFound{
		BaseError: NewBaseError(ErrorTypeTool, fmt.Sprintf("tool not found: %s", toolName), nil),
		ToolName:  toolName,
	}
}

// Graph Errors

// ErrGraphInvalid is returned when a graph fails validation at compile time
type ErrGraphInvalid struct {
	*BaseError
	Reason string
}

func NewGraphInvalid(reason string) *ErrGraphInvalid {
	return &ErrGraphInvalid{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("invalid graph: %s", reason), nil),
		Reason:    reason,
	}
}

// ErrGraphNodeNotFound is returned when a node routes to an unknown node
type ErrGraphNodeNotFound struct {
	*BaseError
	Node string
}

func NewGraphNodeNotFound(node string) *ErrGraphNodeNotFound {
	return &ErrGraphNodeNotFound{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("node not found: %s", node), nil),
		Node:      node,
	}
}

// ErrGraphStepLimit is returned when a run visits more nodes than allowed
type ErrGraphStepLimit struct {
	*BaseError
	Limit int
}

func NewGraphStepLimit(limit int) *ErrGraphStepLimit {
	return &ErrGraphStepLimit{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("step limit reached (%d)", limit), nil),
		Limit:     limit,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// ErrContextTimeout is returned when context times out
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration, err error) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), err),
		Operation: operation,
		Timeout:   timeout,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type typedError interface {
	error
	ErrorType() ErrorType
}

// TypeOf returns the category of the outermost typed error in the chain, or "".
func TypeOf(err error) ErrorType {
	var typed typedError
	if errors.As(err, &typed) {
		return typed.ErrorType()
	}
	return ""
}

// IsErrorType checks if any error in the chain is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if typed, ok := err.(typedError); ok && typed.ErrorType() == errType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	var llmErr *ErrAgentLLMFailed
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}
