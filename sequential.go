package taskweave

import "context"

// SequentialStrategy runs the plan one tool after another.
type SequentialStrategy struct {
	plan           *ExecutionPlan
	runner         *ToolRunner
	store          *ResultStore
	fallbackReason string
}

// NewSequentialStrategy creates a sequential strategy over plan.
func NewSequentialStrategy(plan *ExecutionPlan, runner *ToolRunner, store *ResultStore) *SequentialStrategy {
	return &SequentialStrategy{plan: plan, runner: runner, store: store}
}

func (s *SequentialStrategy) Name() Framework { return FrameworkSequential }

// Invoke implements Strategy.
func (s *SequentialStrategy) Invoke(ctx context.Context, question string) (*Response, error) {
	outputs := make(map[string]Result, s.plan.Len())
	for _, def := range s.plan.Tools() {
		res, err := s.runner.Run(ctx, def, question, s.store)
		if err != nil {
			return nil, err
		}
		outputs[def.Name] = res
	}

	resp := &Response{Question: question, Outputs: outputs}
	if s.fallbackReason != "" {
		resp.Metadata = &Metadata{FallbackReason: s.fallbackReason}
	}
	return resp, nil
}
