package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finquery/backend/internal/agent"
	"finquery/backend/internal/state"
	apperrors "finquery/backend/pkg/errors"
)

type staticMemory struct {
	snippets state.MemoryContext
}

func (m staticMemory) Retrieve(ctx context.Context, query string) state.MemoryContext {
	return m.snippets
}

func echoReasoner() agent.ReasoningAgent {
	return agent.ReasoningFunc(func(ctx context.Context, prompt string) (string, error) {
		return prompt, nil
	})
}

func newPipeline(t *testing.T, mem agent.Retriever, reasoner agent.ReasoningAgent) (*App, *agent.Orchestrator, *agent.QueryAgent) {
	t.Helper()
	qa := agent.NewQueryAgent(mem, reasoner, agent.WithLogger(zap.NewNop()))
	orch := agent.NewOrchestrator(qa)
	app, err := NewApp(orch, zap.NewNop())
	require.NoError(t, err)
	return app, orch, qa
}

func TestApp_ExecuteEchoesQueryAndMemory(t *testing.T) {
	app, _, _ := newPipeline(t, staticMemory{snippets: state.FromTexts("Q1 revenue was $5M")}, echoReasoner())

	out, err := app.Execute(context.Background(), "What was Q1 revenue?")
	require.NoError(t, err)
	assert.Contains(t, out, "What was Q1 revenue?")
	assert.Contains(t, out, "Q1 revenue was $5M")
}

func TestApp_ExecuteIsTransparent(t *testing.T) {
	fixed := agent.ReasoningFunc(func(ctx context.Context, prompt string) (string, error) {
		return "Q1 revenue was $5,000,000.", nil
	})
	app, orch, qa := newPipeline(t, staticMemory{}, fixed)
	ctx := context.Background()

	for _, input := range []string{"What was Q1 revenue?", "", "How many accounts are there?"} {
		viaGraph, err := app.Execute(ctx, input)
		require.NoError(t, err)
		viaOrch, err := orch.HandleQuery(ctx, input)
		require.NoError(t, err)
		direct, err := qa.RunQuery(ctx, input)
		require.NoError(t, err)

		assert.Equal(t, direct, viaOrch)
		assert.Equal(t, direct, viaGraph)
	}
}

func TestApp_ExecutePropagatesAgentError(t *testing.T) {
	agentErr := apperrors.NewAgentExecutionFailed(2, errors.New("malformed SQL"))
	failing := agent.ReasoningFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", agentErr
	})
	app, _, _ := newPipeline(t, staticMemory{}, failing)

	out, err := app.Execute(context.Background(), "What was Q1 revenue?")
	assert.Empty(t, out)
	assert.Same(t, agentErr, err)
}

type recordingHandler struct {
	inputs []string
}

func (h *recordingHandler) HandleQuery(ctx context.Context, input string) (string, error) {
	h.inputs = append(h.inputs, input)
	return "ok", nil
}

func TestApp_SeedsInputIntoHandleQuery(t *testing.T) {
	h := &recordingHandler{}
	app, err := NewApp(h, zap.NewNop())
	require.NoError(t, err)

	out, err := app.Execute(context.Background(), "show me transactions")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []string{"show me transactions"}, h.inputs)
}
