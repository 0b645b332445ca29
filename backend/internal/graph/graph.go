package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"finquery/backend/internal/constants"
	"finquery/backend/internal/state"
	apperrors "finquery/backend/pkg/errors"
	"finquery/backend/pkg/logger"
)

// NodeFunc is the work done at a node. The returned Outcome decides where
// the run goes next.
type NodeFunc func(ctx context.Context, st state.GraphState) (Outcome, error)

// OutcomeKind tags an Outcome
type OutcomeKind int

const (
	// OutcomeContinue follows the node's static edge, or ends the run if it has none
	OutcomeContinue OutcomeKind = iota
	// OutcomeGoto jumps to a named node
	OutcomeGoto
	// OutcomeFinish ends the run with an output
	OutcomeFinish
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeContinue:
		return "continue"
	case OutcomeGoto:
		return "goto"
	case OutcomeFinish:
		return "finish"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is what a node decided. Build it with Continue, Goto or Finish.
type Outcome struct {
	Kind   OutcomeKind
	Next   string // OutcomeGoto
	Output string // OutcomeFinish
}

// Continue follows the static edge
func Continue() Outcome {
	return Outcome{Kind: OutcomeContinue}
}

// Goto routes to node
func Goto(node string) Outcome {
	return Outcome{Kind: OutcomeGoto, Next: node}
}

// Finish ends the run with output
func Finish(output string) Outcome {
	return Outcome{Kind: OutcomeFinish, Output: output}
}

// Graph is a mutable builder of named nodes and static edges. Compile turns
// it into an eino compose graph where every node routes through a branch
// that reads the node's Outcome.
type Graph struct {
	nodes     map[string]NodeFunc
	edges     map[string]string
	entry     string
	stepLimit int
	err       error
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		nodes:     make(map[string]NodeFunc),
		edges:     make(map[string]string),
		stepLimit: constants.DefaultGraphStepLimit,
	}
}

// AddNode registers fn under name. Errors surface at Compile.
func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	switch {
	case g.err != nil:
	case name == "":
		g.err = apperrors.NewGraphInvalid("node name cannot be empty")
	case name == compose.START || name == compose.END:
		g.err = apperrors.NewGraphInvalid(fmt.Sprintf("node name %q is reserved", name))
	case fn == nil:
		g.err = apperrors.NewGraphInvalid(fmt.Sprintf("node %q has no function", name))
	case g.nodes[name] != nil:
		g.err = apperrors.NewGraphInvalid(fmt.Sprintf("duplicate node %q", name))
	default:
		g.nodes[name] = fn
	}
	return g
}

// AddEdge sets the node followed after from when it returns Continue
func (g *Graph) AddEdge(from, to string) *Graph {
	if g.err == nil {
		if _, exists := g.edges[from]; exists {
			g.err = apperrors.NewGraphInvalid(fmt.Sprintf("node %q already has an edge", from))
		} else {
			g.edges[from] = to
		}
	}
	return g
}

// SetEntry designates the first node
func (g *Graph) SetEntry(name string) *Graph {
	g.entry = name
	return g
}

// SetStepLimit caps node visits per run
func (g *Graph) SetStepLimit(n int) *Graph {
	g.stepLimit = n
	return g
}

// run is the per-invocation value threaded through the compose graph
type run struct {
	state   state.GraphState
	outcome Outcome
	visited []string
	err     error // first error raised by a node or branch, kept unwrapped
}

// Compile validates the graph and compiles it for running
func (g *Graph) Compile(log *zap.Logger) (*Runnable, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	cg := compose.NewGraph[*run, *run]()
	for _, name := range names {
		if err := cg.AddLambdaNode(name, compose.InvokableLambda(g.lambda(name))); err != nil {
			return nil, apperrors.NewGraphInvalid(err.Error())
		}
	}

	targets := map[string]bool{compose.END: true}
	for _, name := range names {
		targets[name] = true
	}
	for _, name := range names {
		branch := compose.NewGraphBranch(g.route(name), targets)
		if err := cg.AddBranch(name, branch); err != nil {
			return nil, apperrors.NewGraphInvalid(err.Error())
		}
	}
	if err := cg.AddEdge(compose.START, g.entry); err != nil {
		return nil, apperrors.NewGraphInvalid(err.Error())
	}

	compiled, err := cg.Compile(context.Background(),
		compose.WithGraphName("finquery"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		// backstop only; the visit count in lambda is what callers see
		compose.WithMaxRunSteps(2*g.stepLimit+2),
	)
	if err != nil {
		return nil, apperrors.NewGraphInvalid(err.Error())
	}

	return &Runnable{
		compiled:  compiled,
		stepLimit: g.stepLimit,
		logger:    logger.For(log, "graph"),
	}, nil
}

func (g *Graph) validate() error {
	if g.err != nil {
		return g.err
	}
	if g.entry == "" {
		return apperrors.NewGraphInvalid("entry point not set")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return apperrors.NewGraphInvalid(fmt.Sprintf("entry point %q is not a node", g.entry))
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return apperrors.NewGraphInvalid(fmt.Sprintf("edge from unknown node %q", from))
		}
		if _, ok := g.nodes[to]; !ok {
			return apperrors.NewGraphInvalid(fmt.Sprintf("edge to unknown node %q", to))
		}
	}
	if g.stepLimit <= 0 {
		return apperrors.NewGraphInvalid("step limit must be positive")
	}
	return nil
}

// lambda wraps a NodeFunc as a compose lambda over the run value
func (g *Graph) lambda(name string) func(ctx context.Context, r *run) (*run, error) {
	fn := g.nodes[name]
	limit := g.stepLimit
	return func(ctx context.Context, r *run) (*run, error) {
		if len(r.visited) >= limit {
			r.err = apperrors.NewGraphStepLimit(limit)
			return nil, r.err
		}
		r.visited = append(r.visited, name)

		outcome, err := fn(ctx, r.state)
		if err != nil {
			r.err = err
			return nil, err
		}
		r.outcome = outcome
		return r, nil
	}
}

// route maps the node's Outcome onto the next compose node
func (g *Graph) route(name string) func(ctx context.Context, r *run) (string, error) {
	edge, hasEdge := g.edges[name]
	return func(ctx context.Context, r *run) (string, error) {
		switch r.outcome.Kind {
		case OutcomeFinish:
			r.state.SetOutput(r.outcome.Output)
			return compose.END, nil
		case OutcomeGoto:
			if _, ok := g.nodes[r.outcome.Next]; !ok {
				r.err = apperrors.NewGraphNodeNotFound(r.outcome.Next)
				return "", r.err
			}
			return r.outcome.Next, nil
		default:
			if !hasEdge {
				return compose.END, nil
			}
			return edge, nil
		}
	}
}

// Runnable is a compiled, immutable graph. It is safe for concurrent runs.
type Runnable struct {
	compiled  compose.Runnable[*run, *run]
	stepLimit int
	logger    *zap.Logger
}

// Result describes a finished run
type Result struct {
	RunID   string
	Status  state.Status
	Output  string
	Visited []string
}

// Run executes the graph from the entry node and returns the output.
// Node errors are returned unchanged.
func (r *Runnable) Run(ctx context.Context, st state.GraphState) (string, error) {
	res, err := r.Invoke(ctx, st)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// Invoke is Run with the run record. The record is returned even on failure.
func (r *Runnable) Invoke(ctx context.Context, st state.GraphState) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Status: state.StatusNotStarted}
	if err := st.Validate(); err != nil {
		res.Status = state.StatusFailed
		return res, apperrors.NewGraphInvalid(err.Error())
	}

	log := r.logger.With(zap.String("run_id", res.RunID))
	start := time.Now()
	res.Status = state.StatusRunning

	in := &run{state: st}
	_, err := r.compiled.Invoke(ctx, in)
	res.Visited = in.visited
	if err != nil {
		res.Status = state.StatusFailed
		// compose wraps node errors; hand back the one the node raised
		if in.err != nil {
			err = in.err
		}
		if limitErr, ok := err.(*apperrors.ErrGraphStepLimit); ok {
			log.Warn("Graph run hit step limit", zap.Int("limit", limitErr.Limit))
		} else {
			log.Debug("Graph run failed",
				zap.Strings("visited", res.Visited),
				zap.Error(err),
			)
		}
		return res, err
	}

	res.Status = state.StatusComplete
	res.Output, _ = st.Output()
	log.Debug("Graph run complete",
		zap.Strings("visited", res.Visited),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}
