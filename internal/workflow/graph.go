// Package workflow is a small graph engine: named nodes transform a state
// value and edges (fixed or conditional) pick the next node until End.
package workflow

import (
	"context"
	"errors"
	"fmt"
)

// End is the sentinel target that terminates a run.
const End = "__end__"

// DefaultMaxSteps bounds a run so that a conditional loop cannot spin forever.
const DefaultMaxSteps = 1000

// NodeFunc transforms the state at one node.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Router picks the next node from the state produced by its source node.
type Router[S any] func(state S) string

var (
	ErrNoEntryPoint  = errors.New("workflow: entry point not set")
	ErrDuplicateNode = errors.New("workflow: duplicate node")
	ErrUnknownNode   = errors.New("workflow: unknown node")
	ErrNoOutgoing    = errors.New("workflow: node has no outgoing edge")
	ErrMaxSteps      = errors.New("workflow: step limit exceeded")
)

// Graph is the mutable builder. Compile it to obtain a runnable Runner.
type Graph[S any] struct {
	nodes       map[string]NodeFunc[S]
	order       []string
	edges       map[string]string
	conditional map[string]Router[S]
	entry       string
	maxSteps    int
}

// NewGraph creates an empty graph.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:       make(map[string]NodeFunc[S]),
		edges:       make(map[string]string),
		conditional: make(map[string]Router[S]),
		maxSteps:    DefaultMaxSteps,
	}
}

// AddNode registers a node. Names must be unique and must not be End.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) error {
	if name == "" || name == End {
		return fmt.Errorf("%w: invalid node name %q", ErrUnknownNode, name)
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, name)
	}
	if fn == nil {
		return fmt.Errorf("workflow: node %s has nil function", name)
	}
	g.nodes[name] = fn
	g.order = append(g.order, name)
	return nil
}

// AddEdge adds a fixed transition. A node has at most one outgoing edge.
func (g *Graph[S]) AddEdge(from, to string) {
	g.edges[from] = to
	delete(g.conditional, from)
}

// AddConditionalEdge lets router choose the successor of from at run time.
func (g *Graph[S]) AddConditionalEdge(from string, router Router[S]) {
	g.conditional[from] = router
	delete(g.edges, from)
}

// SetEntryPoint names the first node.
func (g *Graph[S]) SetEntryPoint(name string) {
	g.entry = name
}

// SetMaxSteps changes the step bound. Non-positive values are ignored.
func (g *Graph[S]) SetMaxSteps(n int) {
	if n > 0 {
		g.maxSteps = n
	}
}

// Compile validates the graph and freezes it into a Runner.
func (g *Graph[S]) Compile() (*Runner[S], error) {
	if g.entry == "" {
		return nil, ErrNoEntryPoint
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("%w: entry point %s", ErrUnknownNode, g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: edge source %s", ErrUnknownNode, from)
		}
		if _, ok := g.nodes[to]; !ok && to != End {
			return nil, fmt.Errorf("%w: edge target %s", ErrUnknownNode, to)
		}
	}
	for from := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: conditional edge source %s", ErrUnknownNode, from)
		}
	}
	for _, name := range g.order {
		_, fixed := g.edges[name]
		_, routed := g.conditional[name]
		if !fixed && !routed {
			return nil, fmt.Errorf("%w: %s", ErrNoOutgoing, name)
		}
	}

	r := &Runner[S]{
		nodes:       make(map[string]NodeFunc[S], len(g.nodes)),
		edges:       make(map[string]string, len(g.edges)),
		conditional: make(map[string]Router[S], len(g.conditional)),
		entry:       g.entry,
		maxSteps:    g.maxSteps,
	}
	for k, v := range g.nodes {
		r.nodes[k] = v
	}
	for k, v := range g.edges {
		r.edges[k] = v
	}
	for k, v := range g.conditional {
		r.conditional[k] = v
	}
	return r, nil
}
