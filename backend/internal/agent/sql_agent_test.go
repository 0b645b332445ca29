package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finquery/backend/internal/adapter"
	"finquery/backend/internal/tools"
	apperrors "finquery/backend/pkg/errors"
)

type mockLLM struct {
	responses    []*adapter.Response
	err          error
	calls        int
	seen         [][]adapter.Message
	generateFunc func(ctx context.Context, messages []adapter.Message) (*adapter.Response, error)
}

func (m *mockLLM) Generate(ctx context.Context, messages []adapter.Message, defs []adapter.Tool) (*adapter.Response, error) {
	m.calls++
	m.seen = append(m.seen, append([]adapter.Message(nil), messages...))
	if m.generateFunc != nil {
		return m.generateFunc(ctx, messages)
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &adapter.Response{}, nil
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

func (m *mockLLM) Model() string { return "mock-model" }

type mockToolExecutor struct {
	executed []adapter.ToolCall
	results  map[string]*tools.ToolResult
}

func (m *mockToolExecutor) Tools() []adapter.Tool {
	return tools.GetSQLTools(false)
}

func (m *mockToolExecutor) Execute(ctx context.Context, call adapter.ToolCall) *tools.ToolResult {
	m.executed = append(m.executed, call)
	if r, ok := m.results[call.Name]; ok {
		return r
	}
	return &tools.ToolResult{Success: false, Error: "unexpected tool " + call.Name}
}

func toolCall(id, name string, args map[string]interface{}) adapter.ToolCall {
	return adapter.ToolCall{ID: id, Name: name, Arguments: args}
}

func TestSQLAgent_ToolLoop(t *testing.T) {
	llm := &mockLLM{responses: []*adapter.Response{
		{ToolCalls: []adapter.ToolCall{toolCall("c1", tools.ToolSQLListTables, nil)}},
		{ToolCalls: []adapter.ToolCall{toolCall("c2", tools.ToolSQLQuery, map[string]interface{}{
			"query": "SELECT revenue FROM quarterly_financials WHERE quarter = 'Q1'",
		})}},
		{Content: "Q1 revenue was $5,000,000."},
	}}
	executor := &mockToolExecutor{results: map[string]*tools.ToolResult{
		tools.ToolSQLListTables: {Success: true, Data: "accounts, quarterly_financials"},
		tools.ToolSQLQuery:      {Success: true, Data: "revenue\n5000000"},
	}}

	a := NewSQLAgent(llm, executor, SQLAgentConfig{MaxSteps: 5}, zap.NewNop())
	answer, err := a.Run(context.Background(), "User query: What was Q1 revenue?\nMemory context: []")
	require.NoError(t, err)
	assert.Equal(t, "Q1 revenue was $5,000,000.", answer)
	assert.Equal(t, 3, llm.calls)
	require.Len(t, executor.executed, 2)

	// final turn sees: system, user, assistant+tool, assistant+tool
	last := llm.seen[2]
	require.Len(t, last, 6)
	assert.Equal(t, adapter.RoleSystem, last[0].Role)
	assert.Contains(t, last[0].Content, "sqlite")
	assert.Equal(t, "User query: What was Q1 revenue?\nMemory context: []", last[1].Content)
	assert.Equal(t, adapter.RoleTool, last[3].Role)
	assert.Equal(t, "c1", last[3].ToolCallID)
	assert.Equal(t, "accounts, quarterly_financials", last[3].Content)
	assert.Equal(t, "revenue\n5000000", last[5].Content)
}

func TestSQLAgent_ToolErrorsGoBackToModel(t *testing.T) {
	llm := &mockLLM{responses: []*adapter.Response{
		{ToolCalls: []adapter.ToolCall{toolCall("c1", tools.ToolSQLQuery, map[string]interface{}{"query": "SELECT revenu FROM q"})}},
		{Content: "I could not find that column."},
	}}
	executor := &mockToolExecutor{results: map[string]*tools.ToolResult{
		tools.ToolSQLQuery: {Success: false, Error: "no such column: revenu"},
	}}

	answer, err := NewSQLAgent(llm, executor, SQLAgentConfig{}, zap.NewNop()).Run(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "I could not find that column.", answer)
	assert.Equal(t, "Error: no such column: revenu", llm.seen[1][3].Content)
}

func TestSQLAgent_StepBudgetExceeded(t *testing.T) {
	llm := &mockLLM{responses: []*adapter.Response{
		{ToolCalls: []adapter.ToolCall{toolCall("c", tools.ToolSQLListTables, nil)}},
	}}
	executor := &mockToolExecutor{results: map[string]*tools.ToolResult{
		tools.ToolSQLListTables: {Success: true, Data: "accounts"},
	}}

	_, err := NewSQLAgent(llm, executor, SQLAgentConfig{MaxSteps: 3}, zap.NewNop()).Run(context.Background(), "p")
	require.Error(t, err)

	var budgetErr *apperrors.ErrAgentStepBudgetExceeded
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, 3, budgetErr.MaxSteps)
	assert.Equal(t, 3, llm.calls)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeAgent))
}

func TestSQLAgent_LLMFailure(t *testing.T) {
	cause := apperrors.NewAgentLLMFailed("mock-model", 3, true, errors.New("503 service unavailable"))
	llm := &mockLLM{err: cause}

	_, err := NewSQLAgent(llm, &mockToolExecutor{}, SQLAgentConfig{}, zap.NewNop()).Run(context.Background(), "p")
	require.Error(t, err)

	var execErr *apperrors.ErrAgentExecutionFailed
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, cause)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestSQLAgent_EmptyAnswer(t *testing.T) {
	llm := &mockLLM{responses: []*adapter.Response{{Content: "   "}}}

	_, err := NewSQLAgent(llm, &mockToolExecutor{}, SQLAgentConfig{}, zap.NewNop()).Run(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAgentNoResponse)
}

func TestSQLAgent_Timeout(t *testing.T) {
	llm := &mockLLM{generateFunc: func(ctx context.Context, messages []adapter.Message) (*adapter.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	a := NewSQLAgent(llm, &mockToolExecutor{}, SQLAgentConfig{Timeout: 20 * time.Millisecond}, zap.NewNop())
	_, err := a.Run(context.Background(), "p")
	require.Error(t, err)

	var timeoutErr *apperrors.ErrContextTimeout
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.Timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSQLAgent_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	llm := &mockLLM{}

	_, err := NewSQLAgent(llm, &mockToolExecutor{}, SQLAgentConfig{}, zap.NewNop()).Run(ctx, "p")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeContext))
	assert.Equal(t, 0, llm.calls)
}

func TestBuildSystemPrompt(t *testing.T) {
	withChecker := buildSystemPrompt("sqlite", 10, true)
	assert.Contains(t, withChecker, "at most 10 results")
	assert.Contains(t, withChecker, tools.ToolSQLQueryCheck)

	without := buildSystemPrompt("sqlite", 5, false)
	assert.NotContains(t, without, tools.ToolSQLQueryCheck)
	assert.Contains(t, without, tools.ToolSQLListTables)
}
