package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"finquery/backend/internal/adapter"
	apperrors "finquery/backend/pkg/errors"
	"finquery/backend/pkg/logger"
)

// SQLDatabase is the read-only database surface the toolkit needs
type SQLDatabase interface {
	Dialect() string
	ListTables(ctx context.Context) ([]string, error)
	TableInfo(ctx context.Context, tables ...string) (string, error)
	Run(ctx context.Context, query string) (string, error)
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// String renders the result as the text returned to the model
func (r *ToolResult) String() string {
	if !r.Success {
		return "Error: " + r.Error
	}
	switch data := r.Data.(type) {
	case nil:
		return r.Message
	case string:
		return data
	default:
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Sprint(data)
		}
		return string(encoded)
	}
}

// Executor handles tool execution
type Executor struct {
	db      SQLDatabase
	checker adapter.LLM
	logger  *zap.Logger
}

// NewExecutor creates a new tool executor. checker may be nil, in which case
// the query checker tool is not offered.
func NewExecutor(db SQLDatabase, checker adapter.LLM, log *zap.Logger) *Executor {
	return &Executor{
		db:      db,
		checker: checker,
		logger:  logger.For(log, "tools"),
	}
}

// Tools returns the definitions this executor can run
func (e *Executor) Tools() []adapter.Tool {
	return GetSQLTools(e.checker != nil)
}

// Execute runs a tool call and returns the result. Failures are reported to
// the model as an unsuccessful result so it can correct itself.
func (e *Executor) Execute(ctx context.Context, toolCall adapter.ToolCall) *ToolResult {
	e.logger.Debug("Executing tool",
		zap.String("tool", toolCall.Name),
		zap.String("tool_id", toolCall.ID),
	)

	var result *ToolResult
	switch toolCall.Name {
	case ToolSQLListTables:
		result = e.executeListTables(ctx)
	case ToolSQLSchema:
		result = e.executeSchema(ctx, toolCall.Arguments)
	case ToolSQLQuery:
		result = e.executeQuery(ctx, toolCall.Arguments)
	case ToolSQLQueryCheck:
		if e.checker == nil {
			result = errorResult(apperrors.NewToolNotFound(toolCall.Name))
			break
		}
		result = e.executeQueryCheck(ctx, toolCall.Arguments)
	default:
		result = errorResult(apperrors.NewToolNotFound(toolCall.Name))
	}

	if !result.Success {
		e.logger.Warn("Tool execution failed",
			zap.String("tool", toolCall.Name),
			zap.String("error", result.Error),
		)
	}
	return result
}

func errorResult(err error) *ToolResult {
	return &ToolResult{Success: false, Error: err.Error()}
}
