package taskweave

import "fmt"

// ExecutionPlan is a dependency-respecting total order over tool names. It is
// immutable once constructed.
type ExecutionPlan struct {
	order []string
	tools map[string]ToolDefinition
}

// NewExecutionPlan validates the tool list and orders it.
func NewExecutionPlan(tools []ToolDefinition) (*ExecutionPlan, error) {
	order, err := BuildOrder(tools)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]ToolDefinition, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}
	return &ExecutionPlan{order: order, tools: byName}, nil
}

// Order returns a copy of the tool names in execution order.
func (p *ExecutionPlan) Order() []string {
	return append([]string(nil), p.order...)
}

// Tool returns the definition of a planned tool.
func (p *ExecutionPlan) Tool(name string) (ToolDefinition, bool) {
	t, ok := p.tools[name]
	return t, ok
}

// Tools returns the definitions in execution order.
func (p *ExecutionPlan) Tools() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.tools[name])
	}
	return out
}

// Len returns the number of planned tools.
func (p *ExecutionPlan) Len() int {
	return len(p.order)
}

// BuildOrder topologically sorts tools with Kahn's algorithm. Ties are broken
// by declaration order, so the result is deterministic.
func BuildOrder(tools []ToolDefinition) ([]string, error) {
	index := make(map[string]int, len(tools))
	for i, t := range tools {
		if _, exists := index[t.Name]; exists {
			return nil, NewInvalidConfigError(fmt.Sprintf("duplicate tool name '%s'", t.Name), nil)
		}
		index[t.Name] = i
	}

	inDegree := make([]int, len(tools))
	dependents := make([][]int, len(tools))
	for i, t := range tools {
		seen := make(map[string]struct{}, len(t.DependsOn))
		for _, dep := range t.DependsOn {
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			j, ok := index[dep]
			if !ok {
				return nil, NewUnknownDependencyError(t.Name, dep)
			}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, len(tools))
	for i := range tools {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]string, 0, len(tools))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, tools[i].Name)
		for _, j := range dependents[i] {
			inDegree[j]--
			if inDegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(order) < len(tools) {
		unresolved := make([]string, 0, len(tools)-len(order))
		for i, t := range tools {
			if inDegree[i] > 0 {
				unresolved = append(unresolved, t.Name)
			}
		}
		return nil, NewCycleDetectedError(unresolved)
	}
	return order, nil
}
