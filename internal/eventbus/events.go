package eventbus

import (
	"context"
	"time"
)

// EventType represents the type of an event
type EventType string

// Run lifecycle events
const (
	EventRunStarted   EventType = "run.started"
	EventRunCompleted EventType = "run.completed"
	EventRunFailed    EventType = "run.failed"

	// Strategy construction fell back to another framework
	EventStrategyFallback EventType = "strategy.fallback"
)

// Tool events
const (
	EventToolStarted   EventType = "tool.started"
	EventToolCompleted EventType = "tool.completed"
	// EventToolWarning is published when a remote call degrades to a warning output.
	EventToolWarning EventType = "tool.warning"
)

// Job events, published by the HTTP server for async runs
const (
	EventJobSubmitted EventType = "job.submitted"
	EventJobFinished  EventType = "job.finished"
)

// EventHandler is a function that handles events
type EventHandler func(context.Context, Event) error

// Event represents something that has happened during a run
type Event interface {
	Type() EventType
	Payload() any
	Metadata() map[string]any
	Timestamp() int64
	Source() string
}

// EventBus is the central event dispatch system
type EventBus interface {
	// Publish queues an event for every matching subscriber.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for specific event types and returns its subscription ID.
	Subscribe(eventTypes []EventType, handler EventHandler) (string, error)

	// SubscribeAll registers a handler for all event types.
	SubscribeAll(handler EventHandler) (string, error)

	Unsubscribe(subscriptionID string) error

	Close() error
}

// BaseEvent is a simple implementation of the Event interface
type BaseEvent struct {
	eventType  EventType
	payload    any
	metadata   map[string]any
	timestamp  int64
	sourceInfo string
}

// NewEvent creates a new BaseEvent
func NewEvent(eventType EventType, payload any, source string, metadata map[string]any) *BaseEvent {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &BaseEvent{
		eventType:  eventType,
		payload:    payload,
		metadata:   metadata,
		timestamp:  time.Now().UnixNano(),
		sourceInfo: source,
	}
}

func (e *BaseEvent) Type() EventType          { return e.eventType }
func (e *BaseEvent) Payload() any             { return e.payload }
func (e *BaseEvent) Metadata() map[string]any { return e.metadata }
func (e *BaseEvent) Timestamp() int64         { return e.timestamp }
func (e *BaseEvent) Source() string           { return e.sourceInfo }

// WithMetadata adds or updates one metadata entry and returns the same event.
func (e *BaseEvent) WithMetadata(key string, value any) *BaseEvent {
	e.metadata[key] = value
	return e
}

// ToolPayload is the payload of tool events.
type ToolPayload struct {
	RunID    string
	Tool     string
	Kind     string
	Duration time.Duration
	Warning  string
}

// RunPayload is the payload of run events.
type RunPayload struct {
	RunID     string
	Framework string
	Question  string
	Duration  time.Duration
	Err       error
}

// JobPayload is the payload of job events.
type JobPayload struct {
	JobID    string
	Question string
	Status   string
	Duration time.Duration
	Err      error
}
