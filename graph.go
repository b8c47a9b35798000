package taskweave

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/taskweave/internal/workflow"
)

// graphState is the value passed from node to node.
type graphState struct {
	Question string
	Outputs  map[string]Result
}

// nodeDescriptor identifies the tool a node runs. Nodes capture it by value.
type nodeDescriptor struct {
	name    string
	ordinal int
}

// GraphStrategy runs the plan as a linear chain of workflow nodes.
type GraphStrategy struct {
	plan   *ExecutionPlan
	runner *ToolRunner
	store  *ResultStore
	graph  *workflow.Runner[graphState]
}

// NewGraphStrategy compiles the plan into a workflow graph.
func NewGraphStrategy(plan *ExecutionPlan, runner *ToolRunner, store *ResultStore) (*GraphStrategy, error) {
	s := &GraphStrategy{plan: plan, runner: runner, store: store}
	if plan.Len() == 0 {
		return s, nil
	}

	g := workflow.NewGraph[graphState]()
	order := plan.Order()
	for i, name := range order {
		if err := g.AddNode(name, s.node(nodeDescriptor{name: name, ordinal: i})); err != nil {
			return nil, NewError(ErrCodeInvalidConfig, "graph", fmt.Sprintf("cannot add node for tool '%s'", name), err)
		}
		next := workflow.End
		if i+1 < len(order) {
			next = order[i+1]
		}
		g.AddEdge(name, next)
	}
	g.SetEntryPoint(order[0])
	g.SetMaxSteps(len(order))

	compiled, err := g.Compile()
	if err != nil {
		return nil, NewError(ErrCodeInvalidConfig, "graph", "cannot compile workflow graph", err)
	}
	s.graph = compiled
	return s, nil
}

func (s *GraphStrategy) Name() Framework { return FrameworkGraph }

func (s *GraphStrategy) node(d nodeDescriptor) workflow.NodeFunc[graphState] {
	return func(ctx context.Context, st graphState) (graphState, error) {
		def, ok := s.plan.Tool(d.name)
		if !ok {
			return st, NewError(ErrCodeInvalidConfig, "graph", fmt.Sprintf("node %d names unplanned tool '%s'", d.ordinal, d.name), nil)
		}
		res, err := s.runner.Run(ctx, def, st.Question, s.store)
		if err != nil {
			return st, err
		}
		outputs := make(map[string]Result, len(st.Outputs)+1)
		for k, v := range st.Outputs {
			outputs[k] = v
		}
		outputs[d.name] = res
		return graphState{Question: st.Question, Outputs: outputs}, nil
	}
}

// Invoke implements Strategy.
func (s *GraphStrategy) Invoke(ctx context.Context, question string) (*Response, error) {
	if s.graph == nil {
		return &Response{Question: question, Outputs: map[string]Result{}}, nil
	}
	exec, err := s.graph.Execute(ctx, graphState{Question: question, Outputs: map[string]Result{}})
	s.runner.logger.Debug("graph run finished",
		"run_id", s.runner.runID,
		"entry", s.graph.Entry(),
		"path", exec.Path,
		"status", exec.Status,
		"duration", exec.Duration(),
	)
	if err != nil {
		return nil, err
	}
	return &Response{Question: exec.State.Question, Outputs: exec.State.Outputs}, nil
}
