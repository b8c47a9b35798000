package taskweave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/taskweave/internal/args"
	"github.com/ZanzyTHEbar/taskweave/internal/eventbus"
	"github.com/ZanzyTHEbar/taskweave/internal/httpcall"
	"github.com/ZanzyTHEbar/taskweave/internal/llm"
)

// State is the lifecycle state of an orchestrator.
type State string

const (
	StateBuilt     State = "built"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

// Orchestrator builds a plan from a configuration document and runs it
// through the selected strategy.
type Orchestrator struct {
	settings AgentSettings
	plan     *ExecutionPlan
	strategy Strategy
	store    *ResultStore
	runner   *ToolRunner

	llm           LLM
	http          HTTPClient
	bus           eventbus.EventBus
	logger        *slog.Logger
	factory       ReasonerFactory
	resolver      *args.Resolver
	remoteTimeout time.Duration
	metrics       *metrics

	// mu serializes runs; stateMu guards state so State can be read mid-run.
	mu      sync.Mutex
	stateMu sync.RWMutex
	state   State
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLLM sets the language-model backend. The default is the echo mock.
func WithLLM(l LLM) Option {
	return func(o *Orchestrator) { o.llm = l }
}

// WithHTTPClient sets the remote-call backend.
func WithHTTPClient(c HTTPClient) Option {
	return func(o *Orchestrator) { o.http = c }
}

// WithStore makes the orchestrator use store. It is cleared during New.
func WithStore(s *ResultStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithEventBus publishes run and tool events to bus.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithReasonerFactory supplies the delegated strategy's reasoner.
func WithReasonerFactory(f ReasonerFactory) Option {
	return func(o *Orchestrator) { o.factory = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRemoteTimeout bounds each remote call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.remoteTimeout = d
		}
	}
}

// WithArgResolver replaces the resolver for remote-call args, e.g. to register expression functions.
func WithArgResolver(r *args.Resolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// New validates doc, clears the store, builds the plan and selects a
// strategy. Every configuration error is returned here, before any tool runs.
func New(ctx context.Context, doc Document, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		logger:        slog.Default(),
		remoteTimeout: DefaultRemoteTimeout,
		metrics:       &metrics{},
		state:         StateBuilt,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = NewResultStore()
	}
	if o.llm == nil {
		o.llm = llm.NewMock()
	}
	if o.http == nil {
		o.http = httpcall.New(httpcall.WithTimeout(o.remoteTimeout))
	}
	if o.resolver == nil {
		o.resolver = args.NewResolver()
	}

	doc = NormalizeDocument(doc)
	o.settings = doc.Agent
	o.store.Clear()

	framework, err := ParseFramework(doc.Agent.Framework)
	if err != nil {
		return nil, err
	}
	for _, def := range doc.Tools {
		if spec, ok := def.Spec.(RemoteCallSpec); ok {
			if err := o.resolver.Validate(spec.Args); err != nil {
				return nil, NewInvalidConfigError(fmt.Sprintf("tool '%s' has invalid args", def.Name), err)
			}
		}
	}
	plan, err := NewExecutionPlan(doc.Tools)
	if err != nil {
		return nil, err
	}
	o.plan = plan

	o.runner = &ToolRunner{
		llm:           o.llm,
		http:          o.http,
		resolver:      o.resolver,
		bus:           o.bus,
		logger:        o.logger,
		metrics:       o.metrics,
		remoteTimeout: o.remoteTimeout,
	}

	o.strategy, err = o.selectStrategy(ctx, framework)
	if err != nil {
		return nil, err
	}
	o.logger.Info("orchestrator built",
		"framework", o.strategy.Name(),
		"requested_framework", framework,
		"tools", plan.Order())
	return o, nil
}

// selectStrategy builds the strategy for framework. A delegated strategy
// that cannot be built falls back to the sequential one.
func (o *Orchestrator) selectStrategy(ctx context.Context, framework Framework) (Strategy, error) {
	switch framework {
	case FrameworkSequential:
		return NewSequentialStrategy(o.plan, o.runner, o.store), nil
	case FrameworkGraph:
		return NewGraphStrategy(o.plan, o.runner, o.store)
	case FrameworkDelegated:
		s, err := newDelegatedStrategy(ctx, o.factory, o.settings, o.plan, o.runner, o.store)
		if err == nil {
			return s, nil
		}
		reason := fmt.Sprintf("delegated reasoning unavailable: %v", err)
		o.logger.Warn("falling back to sequential strategy", "error", err)
		o.publish(ctx, eventbus.EventStrategyFallback, eventbus.RunPayload{Framework: string(FrameworkSequential), Err: err})
		seq := NewSequentialStrategy(o.plan, o.runner, o.store)
		seq.fallbackReason = reason
		return seq, nil
	default:
		return nil, NewUnsupportedFrameworkError(string(framework))
	}
}

// Invoke runs the plan once for the request's question. Runs on one
// orchestrator are serialized because they share its store.
func (o *Orchestrator) Invoke(ctx context.Context, req Request) (*Response, error) {
	question := req.Text()
	if question == "" {
		return nil, NewMissingQuestionError()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	runID := uuid.New().String()
	o.runner.runID = runID
	o.setState(StateRunning)
	start := time.Now()
	o.publish(ctx, eventbus.EventRunStarted, eventbus.RunPayload{RunID: runID, Framework: string(o.strategy.Name()), Question: question})
	o.logger.Info("run started", "run_id", runID, "framework", o.strategy.Name())

	resp, err := o.strategy.Invoke(ctx, question)
	elapsed := time.Since(start)
	if err != nil {
		o.setState(StateBuilt)
		o.publish(ctx, eventbus.EventRunFailed, eventbus.RunPayload{RunID: runID, Framework: string(o.strategy.Name()), Question: question, Duration: elapsed, Err: err})
		o.logger.Error("run failed", "run_id", runID, "error", err)
		return nil, err
	}

	o.metrics.recordRun()
	o.setState(StateCompleted)
	o.publish(ctx, eventbus.EventRunCompleted, eventbus.RunPayload{RunID: runID, Framework: string(o.strategy.Name()), Question: question, Duration: elapsed})
	o.logger.Info("run completed", "run_id", runID, "duration", elapsed, "outputs", len(resp.Outputs))
	return resp, nil
}

// Store returns the shared result store.
func (o *Orchestrator) Store() *ResultStore { return o.store }

// Plan returns the execution plan.
func (o *Orchestrator) Plan() *ExecutionPlan { return o.plan }

// Framework returns the strategy actually in use, after any fallback.
func (o *Orchestrator) Framework() Framework { return o.strategy.Name() }

// Settings returns the normalized agent settings.
func (o *Orchestrator) Settings() AgentSettings { return o.settings }

// Metrics returns a snapshot of the tool metrics.
func (o *Orchestrator) Metrics() RunMetrics { return o.metrics.snapshot() }

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.state = s
}

func (o *Orchestrator) publish(ctx context.Context, t eventbus.EventType, payload any) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(ctx, eventbus.NewEvent(t, payload, "taskweave.orchestrator", nil)); err != nil {
		o.logger.Debug("event publish failed", "event_type", t, "error", err)
	}
}
