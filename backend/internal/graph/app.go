package graph

import (
	"context"

	"go.uber.org/zap"

	"finquery/backend/internal/constants"
	"finquery/backend/internal/state"
)

// QueryHandler handles one user query
type QueryHandler interface {
	HandleQuery(ctx context.Context, input string) (string, error)
}

// App is the one-node graph that routes every query to a QueryHandler
type App struct {
	runnable *Runnable
}

// NewApp builds the graph with a single handle_query node as entry point
func NewApp(handler QueryHandler, log *zap.Logger) (*App, error) {
	runnable, err := New().
		AddNode(constants.HandleQueryNode, handleQueryNode(handler)).
		SetEntry(constants.HandleQueryNode).
		Compile(log)
	if err != nil {
		return nil, err
	}
	return &App{runnable: runnable}, nil
}

func handleQueryNode(handler QueryHandler) NodeFunc {
	return func(ctx context.Context, st state.GraphState) (Outcome, error) {
		out, err := handler.HandleQuery(ctx, st.Input())
		if err != nil {
			return Outcome{}, err
		}
		return Finish(out), nil
	}
}

// Execute seeds the graph state with input and runs it to completion
func (a *App) Execute(ctx context.Context, input string) (string, error) {
	return a.runnable.Run(ctx, state.NewGraphState(input))
}
