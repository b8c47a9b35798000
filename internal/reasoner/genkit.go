// Package reasoner backs the delegated strategy with a genkit tool-calling loop.
// Every planned tool is registered as a genkit tool; the model decides which
// ones to call and in what order.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/ZanzyTHEbar/taskweave"
)

// ErrNoAPIKey is returned by the factory when no Gemini key is configured.
var ErrNoAPIKey = errors.New("gemini api key is not configured")

// ToolInput is the argument schema every registered tool exposes to the model.
type ToolInput struct {
	Question string `json:"question" jsonschema:"description=The question the tool should work on"`
}

// ToolOutput is what the model sees after a tool call.
type ToolOutput struct {
	Output any `json:"output"`
}

// Option configures the factory.
type Option func(*factory)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *factory) {
		if l != nil {
			f.logger = l
		}
	}
}

type factory struct {
	apiKey string
	logger *slog.Logger
}

// NewFactory returns a taskweave.ReasonerFactory backed by genkit and Gemini.
func NewFactory(apiKey string, opts ...Option) taskweave.ReasonerFactory {
	f := &factory{apiKey: apiKey, logger: slog.Default()}
	for _, o := range opts {
		o(f)
	}
	return f.build
}

func (f *factory) build(ctx context.Context, deps taskweave.ReasonerDeps) (taskweave.Reasoner, error) {
	if strings.TrimSpace(f.apiKey) == "" {
		return nil, ErrNoAPIKey
	}
	if deps.Call == nil {
		return nil, errors.New("reasoner needs a tool caller")
	}

	g, err := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: f.apiKey}))
	if err != nil {
		return nil, fmt.Errorf("genkit init: %w", err)
	}

	r := &genkitReasoner{
		g:        g,
		settings: deps.Settings,
		logger:   f.logger,
	}
	for _, def := range deps.Tools {
		r.refs = append(r.refs, r.defineTool(def, deps.Call))
	}
	return r, nil
}

type genkitReasoner struct {
	g        *genkit.Genkit
	settings taskweave.AgentSettings
	refs     []ai.ToolRef
	logger   *slog.Logger

	mu     sync.Mutex
	called []string
}

func (r *genkitReasoner) defineTool(def taskweave.ToolDefinition, call taskweave.ToolCaller) ai.ToolRef {
	name := def.Name
	desc := def.Description
	if desc == "" {
		desc = fmt.Sprintf("Runs the %s tool (%s).", name, def.Kind())
	}
	return genkit.DefineTool(r.g, name, desc, func(tc *ai.ToolContext, in ToolInput) (ToolOutput, error) {
		r.mu.Lock()
		r.called = append(r.called, name)
		r.mu.Unlock()

		res, err := call(tc, name, in.Question)
		if err != nil {
			return ToolOutput{}, err
		}
		r.logger.Debug("reasoner tool call", "tool", name)
		return ToolOutput{Output: res.Output}, nil
	})
}

// Reason runs one tool-calling conversation and reports the final answer
// together with the tools the model chose to call.
func (r *genkitReasoner) Reason(ctx context.Context, question string) (map[string]any, error) {
	r.mu.Lock()
	r.called = nil
	r.mu.Unlock()

	prompt := r.settings.SystemPrompt + "\n\n" + question
	resp, err := genkit.Generate(ctx, r.g,
		ai.WithModelName(modelName(r.settings.Model)),
		ai.WithPrompt(prompt),
		ai.WithTools(r.refs...),
	)
	if err != nil {
		return nil, fmt.Errorf("delegated reasoning: %w", err)
	}

	r.mu.Lock()
	called := append([]string(nil), r.called...)
	r.mu.Unlock()

	return map[string]any{
		"output":       resp.Text(),
		"tools_called": called,
	}, nil
}

// modelName qualifies a bare Gemini model with the googleai provider prefix.
func modelName(model string) string {
	if model == "" {
		model = taskweave.DefaultModel
	}
	if strings.Contains(model, "/") {
		return model
	}
	return "googleai/" + model
}
