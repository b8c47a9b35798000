package taskweave

import (
	"context"
	"fmt"
	"sync"
)

// DelegatedStrategy hands the question to an external Reasoner that calls
// planned tools on its own.
type DelegatedStrategy struct {
	reasoner Reasoner
	store    *ResultStore

	// outputs holds only the tools called during the current run.
	mu      sync.Mutex
	outputs map[string]Result
}

// newDelegatedStrategy builds the reasoner through factory. Any failure is
// reported as ErrReasonerUnavailable so the caller can fall back.
func newDelegatedStrategy(ctx context.Context, factory ReasonerFactory, settings AgentSettings, plan *ExecutionPlan, runner *ToolRunner, store *ResultStore) (*DelegatedStrategy, error) {
	if factory == nil {
		return nil, NewReasonerUnavailableError(fmt.Errorf("no reasoner factory configured"))
	}
	s := &DelegatedStrategy{store: store, outputs: make(map[string]Result)}
	call := func(ctx context.Context, toolName, question string) (Result, error) {
		def, ok := plan.Tool(toolName)
		if !ok {
			return Result{}, fmt.Errorf("tool '%s' is not part of the plan", toolName)
		}
		res, err := runner.Run(ctx, def, question, store)
		if err != nil {
			return res, err
		}
		s.mu.Lock()
		s.outputs[toolName] = res
		s.mu.Unlock()
		return res, nil
	}
	reasoner, err := factory(ctx, ReasonerDeps{Settings: settings, Tools: plan.Tools(), Call: call})
	if err != nil {
		return nil, NewReasonerUnavailableError(err)
	}
	if reasoner == nil {
		return nil, NewReasonerUnavailableError(fmt.Errorf("factory returned no reasoner"))
	}
	s.reasoner = reasoner
	return s, nil
}

func (s *DelegatedStrategy) Name() Framework { return FrameworkDelegated }

// Invoke implements Strategy. Agent carries the reasoner's result untouched.
func (s *DelegatedStrategy) Invoke(ctx context.Context, question string) (*Response, error) {
	s.mu.Lock()
	s.outputs = make(map[string]Result)
	s.mu.Unlock()

	agent, err := s.reasoner.Reason(ctx, question)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	outputs := make(map[string]Result, len(s.outputs))
	for k, v := range s.outputs {
		outputs[k] = v
	}
	s.mu.Unlock()
	return &Response{Question: question, Outputs: outputs, Agent: agent}, nil
}
