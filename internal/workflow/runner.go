package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of one execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Execution records how a run went. It is returned even when the run fails.
type Execution[S any] struct {
	State  S
	Status Status
	// Path lists the nodes entered, in order.
	Path       []string
	LastError  error
	ErrorStage string
	StartTime  time.Time
	EndTime    time.Time
}

// Duration returns how long the run took, or has taken so far.
func (e *Execution[S]) Duration() time.Duration {
	if e.EndTime.IsZero() {
		return time.Since(e.StartTime)
	}
	return e.EndTime.Sub(e.StartTime)
}

// IsTerminal reports whether the run has stopped.
func (e *Execution[S]) IsTerminal() bool {
	return e.Status == StatusComplete || e.Status == StatusError || e.Status == StatusCancelled
}

func (e *Execution[S]) fail(err error, stage string) {
	e.LastError = err
	e.ErrorStage = stage
	e.Status = StatusError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		e.Status = StatusCancelled
	}
	e.EndTime = time.Now()
}

// Runner is a compiled, immutable graph. It is safe for concurrent use.
type Runner[S any] struct {
	nodes       map[string]NodeFunc[S]
	edges       map[string]string
	conditional map[string]Router[S]
	entry       string
	maxSteps    int
}

// Entry returns the entry node name.
func (r *Runner[S]) Entry() string {
	return r.entry
}

// Execute runs from the entry point until a transition reaches End, a node
// fails, or ctx is done.
func (r *Runner[S]) Execute(ctx context.Context, state S) (*Execution[S], error) {
	exec := &Execution[S]{
		State:     state,
		Status:    StatusRunning,
		StartTime: time.Now(),
	}

	current := r.entry
	for steps := 0; current != End; steps++ {
		if err := ctx.Err(); err != nil {
			exec.fail(err, current)
			return exec, err
		}
		if steps >= r.maxSteps {
			err := fmt.Errorf("%w (%d)", ErrMaxSteps, r.maxSteps)
			exec.fail(err, current)
			return exec, err
		}

		fn, ok := r.nodes[current]
		if !ok {
			err := fmt.Errorf("%w: %s", ErrUnknownNode, current)
			exec.fail(err, current)
			return exec, err
		}
		exec.Path = append(exec.Path, current)

		next, err := fn(ctx, exec.State)
		if err != nil {
			exec.fail(err, current)
			return exec, err
		}
		exec.State = next
		current = r.next(current, next)
	}

	exec.Status = StatusComplete
	exec.EndTime = time.Now()
	return exec, nil
}

func (r *Runner[S]) next(from string, state S) string {
	if router, ok := r.conditional[from]; ok {
		return router(state)
	}
	return r.edges[from]
}
