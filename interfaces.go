package taskweave

import "context"

// LLM turns a rendered prompt into reply text.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HTTPClient performs a remote call and returns the decoded response body.
// Any error is reported to the caller as a warning output, never as a run failure.
type HTTPClient interface {
	Call(ctx context.Context, method, url string, headers map[string]string, payload map[string]any) (any, error)
}

// Strategy walks an execution plan for one question.
type Strategy interface {
	Name() Framework
	Invoke(ctx context.Context, question string) (*Response, error)
}

// Reasoner is an external reasoning loop that decides on its own which tools to call.
type Reasoner interface {
	Reason(ctx context.Context, question string) (map[string]any, error)
}

// ToolCaller runs one planned tool by name against the shared store.
type ToolCaller func(ctx context.Context, toolName, question string) (Result, error)

// ReasonerDeps is everything a ReasonerFactory gets to build a Reasoner.
type ReasonerDeps struct {
	Settings AgentSettings
	Tools    []ToolDefinition
	Call     ToolCaller
}

// ReasonerFactory constructs a Reasoner. A returned error makes the
// orchestrator fall back to the sequential strategy.
type ReasonerFactory func(ctx context.Context, deps ReasonerDeps) (Reasoner, error)
