// Package args resolves the static argument map of a remote-call tool
// against the outputs already recorded by earlier tools.
//
// A value is taken as-is unless it is a string that starts with:
//
//	$   a reference, e.g. "$DataFetcher.output.items[0]"
//	=   a govaluate expression, e.g. "=$Counter.output.total * 2"
//
// A leading ".output" accessor is optional: "$A" and "$A.output" both name
// A's recorded output.
package args

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

// ErrUnresolved is returned when a reference names a tool, field or index
// that has no recorded value.
var ErrUnresolved = errors.New("unresolved reference")

// Lookup returns the recorded output of a tool.
type Lookup func(tool string) (any, bool)

var (
	refRe      = regexp.MustCompile(`\$([a-zA-Z0-9_]+)((?:\.[a-zA-Z0-9_]+|\[[0-9]+\])*)`)
	accessorRe = regexp.MustCompile(`\.[a-zA-Z0-9_]+|\[[0-9]+\]`)
)

// Resolver resolves argument maps. The zero value is not usable; call NewResolver.
type Resolver struct {
	functions map[string]govaluate.ExpressionFunction
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFunction makes fn callable from expressions under name.
func WithFunction(name string, fn govaluate.ExpressionFunction) Option {
	return func(r *Resolver) {
		r.functions[name] = fn
	}
}

// NewResolver creates a resolver with the built-in functions plus any given ones.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{functions: builtinFunctions()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns a new map with every reference and expression replaced by its value.
func (r *Resolver) Resolve(args map[string]any, lookup Lookup) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for name, raw := range args {
		v, err := r.value(raw, lookup)
		if err != nil {
			return nil, fmt.Errorf("argument '%s': %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func (r *Resolver) value(raw any, lookup Lookup) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	switch {
	case strings.HasPrefix(s, "="):
		return r.Evaluate(strings.TrimSpace(s[1:]), lookup)
	case strings.HasPrefix(s, "$"):
		return Reference(s, lookup)
	default:
		return s, nil
	}
}

// Reference resolves a single "$Tool.path" reference. The whole string must be a reference.
func Reference(ref string, lookup Lookup) (any, error) {
	m := refRe.FindStringSubmatch(ref)
	if m == nil || m[0] != ref {
		return nil, fmt.Errorf("malformed reference %q", ref)
	}
	return walk(m[1], m[2], lookup)
}

func walk(tool, accessors string, lookup Lookup) (any, error) {
	val, ok := lookup(tool)
	if !ok {
		return nil, fmt.Errorf("%w: no output recorded for '%s'", ErrUnresolved, tool)
	}
	steps := accessorRe.FindAllString(accessors, -1)
	if len(steps) > 0 && steps[0] == ".output" {
		steps = steps[1:]
	}
	for _, step := range steps {
		if strings.HasPrefix(step, ".") {
			field := step[1:]
			m, ok := val.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: cannot read field '%s' of %T", ErrUnresolved, field, val)
			}
			v, ok := m[field]
			if !ok {
				return nil, fmt.Errorf("%w: field '%s' not found in output of '%s'", ErrUnresolved, field, tool)
			}
			val = v
			continue
		}
		idx, err := strconv.Atoi(step[1 : len(step)-1])
		if err != nil {
			return nil, fmt.Errorf("%w: bad index %s", ErrUnresolved, step)
		}
		arr, ok := val.([]any)
		if !ok || idx >= len(arr) {
			return nil, fmt.Errorf("%w: index %d out of range in output of '%s'", ErrUnresolved, idx, tool)
		}
		val = arr[idx]
	}
	return val, nil
}

// Evaluate computes a govaluate expression in which every "$Tool.path" is
// bound to the referenced value.
func (r *Resolver) Evaluate(expr string, lookup Lookup) (any, error) {
	if expr == "" {
		return nil, errors.New("empty expression")
	}
	variables := map[string]any{}
	var refErr error
	replaced := refRe.ReplaceAllStringFunc(expr, func(matched string) string {
		m := refRe.FindStringSubmatch(matched)
		val, err := walk(m[1], m[2], lookup)
		if err != nil && refErr == nil {
			refErr = err
		}
		name := variableName(m[1], m[2])
		variables[name] = val
		return name
	})
	if refErr != nil {
		return nil, refErr
	}

	evalExpr, err := govaluate.NewEvaluableExpressionWithFunctions(replaced, r.functions)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression %q: %w", expr, err)
	}
	result, err := evalExpr.Evaluate(variables)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", expr, err)
	}
	return result, nil
}

// Validate parses every expression argument without evaluating it, so that
// syntax errors surface when a configuration is loaded.
func (r *Resolver) Validate(args map[string]any) error {
	for name, raw := range args {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(s, "="):
			expr := refRe.ReplaceAllStringFunc(strings.TrimSpace(s[1:]), func(matched string) string {
				m := refRe.FindStringSubmatch(matched)
				return variableName(m[1], m[2])
			})
			if _, err := govaluate.NewEvaluableExpressionWithFunctions(expr, r.functions); err != nil {
				return fmt.Errorf("argument '%s': %w", name, err)
			}
		case strings.HasPrefix(s, "$"):
			if m := refRe.FindString(s); m != s {
				return fmt.Errorf("argument '%s': malformed reference %q", name, s)
			}
		}
	}
	return nil
}

// variableName turns "$A" + ".output.items[0]" into "A_output_items_0".
func variableName(tool, accessors string) string {
	var b strings.Builder
	b.WriteString(tool)
	for _, acc := range accessorRe.FindAllString(accessors, -1) {
		b.WriteByte('_')
		b.WriteString(strings.Trim(acc, ".[]"))
	}
	return b.String()
}
