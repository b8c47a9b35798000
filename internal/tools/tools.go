// Package tools holds the registry of tool definitions that the config
// generator selects from, and the built-in default registry.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ZanzyTHEbar/taskweave"
)

// Registry is an ordered, name-indexed set of tool definitions.
type Registry struct {
	tools []taskweave.ToolDefinition
	index map[string]int
}

// NewRegistry creates a registry. Names must be unique.
func NewRegistry(defs []taskweave.ToolDefinition) (*Registry, error) {
	r := &Registry{
		tools: make([]taskweave.ToolDefinition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if _, dup := r.index[d.Name]; dup {
			return nil, taskweave.NewInvalidConfigError(fmt.Sprintf("duplicate tool '%s' in registry", d.Name), nil)
		}
		r.index[d.Name] = len(r.tools)
		r.tools = append(r.tools, d)
	}
	return r, nil
}

// FromDocument builds a registry from the tools of a loaded document.
func FromDocument(doc taskweave.Document) (*Registry, error) {
	return NewRegistry(doc.Tools)
}

// Len returns the number of tools.
func (r *Registry) Len() int { return len(r.tools) }

// Tools returns a copy of the definitions in registry order.
func (r *Registry) Tools() []taskweave.ToolDefinition {
	return append([]taskweave.ToolDefinition(nil), r.tools...)
}

// Names returns the tool names in registry order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Name
	}
	return out
}

// Lookup returns the registry's definition of name.
func (r *Registry) Lookup(name string) (taskweave.ToolDefinition, bool) {
	i, ok := r.index[name]
	if !ok {
		return taskweave.ToolDefinition{}, false
	}
	return r.tools[i], true
}

// WithTags returns the tools carrying at least one of tags, in registry order.
func (r *Registry) WithTags(tags ...string) []taskweave.ToolDefinition {
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}
	var out []taskweave.ToolDefinition
	for _, def := range r.tools {
		for _, t := range def.Tags {
			if _, ok := want[t]; ok {
				out = append(out, def)
				break
			}
		}
	}
	return out
}

// Select returns the tools whose names match any of the glob patterns, in registry order.
func (r *Registry) Select(patterns ...string) ([]taskweave.ToolDefinition, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, taskweave.NewInvalidConfigError(fmt.Sprintf("invalid tool pattern %q", p), nil)
		}
	}
	var out []taskweave.ToolDefinition
	for _, def := range r.tools {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, def.Name); ok {
				out = append(out, def)
				break
			}
		}
	}
	return out, nil
}

// Closure returns the named tools plus every registry tool they transitively
// depend on, in registry order. Unknown names are an error.
func (r *Registry) Closure(names ...string) ([]taskweave.ToolDefinition, error) {
	keep := make(map[string]struct{}, len(names))
	var visit func(name, from string) error
	visit = func(name, from string) error {
		if _, seen := keep[name]; seen {
			return nil
		}
		def, ok := r.Lookup(name)
		if !ok {
			if from == "" {
				return taskweave.NewInvalidConfigError(fmt.Sprintf("tool '%s' not found in registry", name), nil)
			}
			return taskweave.NewUnknownDependencyError(from, name)
		}
		keep[name] = struct{}{}
		for _, dep := range def.DependsOn {
			if err := visit(dep, name); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range names {
		if err := visit(n, ""); err != nil {
			return nil, err
		}
	}

	out := make([]taskweave.ToolDefinition, 0, len(keep))
	for _, def := range r.tools {
		if _, ok := keep[def.Name]; ok {
			out = append(out, def)
		}
	}
	return out, nil
}

// MarshalJSON encodes the registry as {"tools": [...]}.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tools []taskweave.ToolDefinition `json:"tools"`
	}{Tools: r.tools})
}

// Narrow returns a registry holding the tools that match any of patterns and
// carry any of tags, plus everything they depend on. An empty filter keeps all tools.
func (r *Registry) Narrow(patterns, tags []string) (*Registry, error) {
	selected := r.Tools()
	if len(patterns) > 0 {
		var err error
		if selected, err = r.Select(patterns...); err != nil {
			return nil, err
		}
	}
	if len(tags) > 0 {
		tagged := make(map[string]struct{})
		for _, def := range r.WithTags(tags...) {
			tagged[def.Name] = struct{}{}
		}
		kept := selected[:0]
		for _, def := range selected {
			if _, ok := tagged[def.Name]; ok {
				kept = append(kept, def)
			}
		}
		selected = kept
	}

	names := make([]string, len(selected))
	for i, def := range selected {
		names[i] = def.Name
	}
	closed, err := r.Closure(names...)
	if err != nil {
		return nil, err
	}
	return NewRegistry(closed)
}
