package taskweave

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/taskweave/internal/args"
	"github.com/ZanzyTHEbar/taskweave/internal/eventbus"
)

// inputSlot is the single placeholder a template may contain.
const inputSlot = "{input}"

// DefaultRemoteTimeout bounds each remote call.
const DefaultRemoteTimeout = 20 * time.Second

// ToolRunner executes one tool against a shared store.
type ToolRunner struct {
	llm           LLM
	http          HTTPClient
	resolver      *args.Resolver
	bus           eventbus.EventBus
	logger        *slog.Logger
	metrics       *metrics
	remoteTimeout time.Duration
	runID         string
}

// NewToolRunner creates a runner with the given backends.
func NewToolRunner(llm LLM, client HTTPClient) *ToolRunner {
	return &ToolRunner{
		llm:           llm,
		http:          client,
		resolver:      args.NewResolver(),
		logger:        slog.Default(),
		metrics:       &metrics{},
		remoteTimeout: DefaultRemoteTimeout,
	}
}

// Run executes def, records its output in store and returns it. Remote-call
// failures come back as a warning output, not as an error. Only an unknown
// spec or a done context is an error.
func (r *ToolRunner) Run(ctx context.Context, def ToolDefinition, question string, store *ResultStore) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	r.publish(ctx, eventbus.EventToolStarted, eventbus.ToolPayload{RunID: r.runID, Tool: def.Name, Kind: string(def.Kind())})

	bundle := inputBundle(def, question, store)
	var (
		output  any
		warning string
	)
	switch spec := def.Spec.(type) {
	case PromptSpec:
		output = r.generate(ctx, def.Name, render(spec.Template, question))
	case AnalysisSpec:
		output = r.generate(ctx, def.Name, render(spec.Template, encodeBundle(bundle)))
	case RemoteCallSpec:
		output, warning = r.call(ctx, def.Name, spec, bundle, store)
	default:
		return Result{}, NewUnsupportedKindError(def.Name, string(def.Kind()))
	}

	res := Result{Output: output}
	store.Set(def.Name, res)

	elapsed := time.Since(start)
	r.metrics.recordTool(def.Name, elapsed, warning != "")
	payload := eventbus.ToolPayload{RunID: r.runID, Tool: def.Name, Kind: string(def.Kind()), Duration: elapsed, Warning: warning}
	if warning != "" {
		r.publish(ctx, eventbus.EventToolWarning, payload)
	}
	r.publish(ctx, eventbus.EventToolCompleted, payload)
	r.logger.Debug("tool completed", "run_id", r.runID, "tool", def.Name, "kind", def.Kind(), "duration", elapsed)
	return res, nil
}

// inputBundle is the question plus the recorded output of every declared
// dependency. The question key always holds the raw question, even when a
// dependency shares its name.
func inputBundle(def ToolDefinition, question string, store *ResultStore) map[string]any {
	bundle := make(map[string]any, len(def.DependsOn)+1)
	for _, dep := range def.DependsOn {
		var out any
		if r, ok := store.Get(dep); ok {
			out = r.Output
		}
		bundle[dep] = out
	}
	bundle["question"] = question
	return bundle
}

func render(template, input string) string {
	return strings.ReplaceAll(template, inputSlot, input)
}

// encodeBundle renders the bundle as JSON. encoding/json sorts map keys.
func encodeBundle(bundle map[string]any) string {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Sprint(bundle)
	}
	return string(data)
}

// generate asks the LLM. A failure becomes the output text.
func (r *ToolRunner) generate(ctx context.Context, tool, prompt string) string {
	reply, err := r.llm.Generate(ctx, prompt)
	if err != nil {
		r.logger.Warn("llm call failed", "run_id", r.runID, "tool", tool, "error", err)
		return err.Error()
	}
	return reply
}

// call performs a remote call. The second result is the warning text when it degraded.
func (r *ToolRunner) call(ctx context.Context, tool string, spec RemoteCallSpec, bundle map[string]any, store *ResultStore) (any, string) {
	payload := make(map[string]any, len(spec.Params)+len(spec.Args))
	for _, p := range spec.Params {
		v, ok := bundle[p]
		if !ok || v == nil {
			v = ""
		}
		payload[p] = v
	}

	degrade := func(err error) (any, string) {
		warning := fmt.Sprintf("API call failed, using fallback payload: %v", err)
		r.logger.Warn("remote call degraded", "run_id", r.runID, "tool", tool, "endpoint", spec.Endpoint, "error", err)
		return map[string]any{"warning": warning, "mock_data": payload}, warning
	}

	if len(spec.Args) > 0 {
		resolved, err := r.resolver.Resolve(spec.Args, func(name string) (any, bool) {
			res, ok := store.Get(name)
			return res.Output, ok
		})
		if err != nil {
			return degrade(err)
		}
		for k, v := range resolved {
			payload[k] = v
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.remoteTimeout)
	defer cancel()
	body, err := r.http.Call(callCtx, spec.Method, spec.Endpoint, spec.Headers, payload)
	if err != nil {
		return degrade(err)
	}
	return body, ""
}

func (r *ToolRunner) publish(ctx context.Context, t eventbus.EventType, payload any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, eventbus.NewEvent(t, payload, "taskweave.runner", nil)); err != nil {
		r.logger.Debug("event publish failed", "event_type", t, "error", err)
	}
}
