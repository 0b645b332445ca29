package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"finquery/backend/internal/adapter"
	"finquery/backend/internal/constants"
	"finquery/backend/internal/tools"
	apperrors "finquery/backend/pkg/errors"
	"finquery/backend/pkg/logger"
)

// ToolExecutor runs tool calls requested by the model
type ToolExecutor interface {
	Tools() []adapter.Tool
	Execute(ctx context.Context, toolCall adapter.ToolCall) *tools.ToolResult
}

// SQLAgentConfig bounds a reasoning run
type SQLAgentConfig struct {
	MaxSteps   int           // model turns per run
	Timeout    time.Duration // wall clock per run, zero for none
	Dialect    string
	QueryLimit int // row limit suggested to the model
}

// SQLAgent is a reason-then-act loop over a chat model with SQL tools
type SQLAgent struct {
	llm          adapter.LLM
	executor     ToolExecutor
	cfg          SQLAgentConfig
	systemPrompt string
	logger       *zap.Logger
}

// NewSQLAgent creates a new SQL agent
func NewSQLAgent(llm adapter.LLM, executor ToolExecutor, cfg SQLAgentConfig, log *zap.Logger) *SQLAgent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = constants.DefaultMaxAgentSteps
	}
	if cfg.Dialect == "" {
		cfg.Dialect = constants.SQLDialect
	}
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = 10
	}

	withChecker := false
	for _, t := range executor.Tools() {
		if t.Function.Name == tools.ToolSQLQueryCheck {
			withChecker = true
		}
	}

	return &SQLAgent{
		llm:          llm,
		executor:     executor,
		cfg:          cfg,
		systemPrompt: buildSystemPrompt(cfg.Dialect, cfg.QueryLimit, withChecker),
		logger:       logger.For(log, "sql_agent"),
	}
}

// Run drives the model until it answers without tool calls. It fails when
// the model errors, answers with nothing, runs out of steps or time.
func (a *SQLAgent) Run(ctx context.Context, prompt string) (string, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	messages := []adapter.Message{
		adapter.SystemMessage(a.systemPrompt),
		adapter.UserMessage(prompt),
	}
	toolDefs := a.executor.Tools()

	for step := 1; step <= a.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", a.contextError(err)
		}

		resp, err := a.llm.Generate(ctx, messages, toolDefs)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", a.contextError(ctxErr)
			}
			a.logger.Warn("Agent LLM call failed",
				zap.Int("step", step),
				zap.Bool("retryable", apperrors.IsRetryable(err)),
				zap.Error(err),
			)
			return "", apperrors.NewAgentExecutionFailed(step-1, err)
		}

		if len(resp.ToolCalls) == 0 {
			answer := strings.TrimSpace(resp.Content)
			if answer == "" {
				return "", apperrors.NewAgentExecutionFailed(step, apperrors.ErrAgentNoResponse)
			}
			a.logger.Info("Agent answered",
				zap.Int("steps", step),
				zap.String("model", a.llm.Model()),
			)
			return answer, nil
		}

		messages = append(messages, adapter.AssistantMessage(resp))
		for _, call := range resp.ToolCalls {
			result := a.executor.Execute(ctx, call)
			messages = append(messages, adapter.ToolMessage(call, result.String()))
		}

		a.logger.Debug("Agent step complete",
			zap.Int("step", step),
			zap.Int("tool_calls", len(resp.ToolCalls)),
		)
	}

	a.logger.Warn("Agent exceeded step budget", zap.Int("max_steps", a.cfg.MaxSteps))
	return "", apperrors.NewAgentStepBudgetExceeded(a.cfg.MaxSteps)
}

func (a *SQLAgent) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewContextTimeout("agent run", a.cfg.Timeout, err)
	}
	return apperrors.NewContextCancelled("agent run", err)
}
