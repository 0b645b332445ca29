package agent

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"finquery/backend/internal/state"
	"finquery/backend/pkg/logger"
)

// ReasoningAgent answers a prompt, possibly calling tools before it settles
// on a final answer.
type ReasoningAgent interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// ReasoningFunc adapts a plain function to ReasoningAgent
type ReasoningFunc func(ctx context.Context, prompt string) (string, error)

// Run calls f
func (f ReasoningFunc) Run(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Retriever looks up memory snippets relevant to a query
type Retriever interface {
	Retrieve(ctx context.Context, query string) state.MemoryContext
}

// QueryAgent combines retrieved memory with the user's query and hands the
// result to a reasoning agent.
type QueryAgent struct {
	memory         Retriever
	reasoner       ReasoningAgent
	maxPromptChars int
	logger         *zap.Logger
}

// QueryAgentOption configures a QueryAgent
type QueryAgentOption func(*QueryAgent)

// WithMaxPromptChars caps the combined prompt length. Zero disables the cap.
func WithMaxPromptChars(n int) QueryAgentOption {
	return func(a *QueryAgent) {
		a.maxPromptChars = n
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) QueryAgentOption {
	return func(a *QueryAgent) {
		a.logger = logger.For(l, "query_agent")
	}
}

// NewQueryAgent creates a new query agent
func NewQueryAgent(memory Retriever, reasoner ReasoningAgent, opts ...QueryAgentOption) *QueryAgent {
	a := &QueryAgent{
		memory:   memory,
		reasoner: reasoner,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.For(nil, "query_agent")
	}
	return a
}

// RunQuery retrieves memory for input, builds the combined prompt and returns
// the reasoning agent's answer unchanged. Errors are returned as is.
func (a *QueryAgent) RunQuery(ctx context.Context, input string) (string, error) {
	memCtx := a.memory.Retrieve(ctx, input)
	prompt := a.fitPrompt(input, memCtx)

	a.logger.Debug("Running query",
		zap.Int("memory_snippets", memCtx.Len()),
		zap.Int("prompt_chars", utf8.RuneCountInString(prompt)),
	)

	return a.reasoner.Run(ctx, prompt)
}

// fitPrompt drops the lowest ranked snippets until the prompt fits the cap.
// The query itself is never cut.
func (a *QueryAgent) fitPrompt(input string, memCtx state.MemoryContext) string {
	prompt := BuildPrompt(input, memCtx)
	if a.maxPromptChars <= 0 || utf8.RuneCountInString(prompt) <= a.maxPromptChars {
		return prompt
	}

	for n := memCtx.Len() - 1; n >= 0; n-- {
		prompt = BuildPrompt(input, memCtx.Truncate(n))
		if utf8.RuneCountInString(prompt) <= a.maxPromptChars {
			break
		}
	}

	a.logger.Warn("Prompt exceeded budget, memory context truncated",
		zap.Int("max_chars", a.maxPromptChars),
		zap.Int("prompt_chars", utf8.RuneCountInString(prompt)),
	)
	return prompt
}

// BuildPrompt formats the user query and memory context as labeled sections
func BuildPrompt(input string, memCtx state.MemoryContext) string {
	return fmt.Sprintf("User query: %s\nMemory context: %s", input, memCtx.String())
}
