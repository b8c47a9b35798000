package taskweave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(tools ...ToolDefinition) []ToolDefinition { return tools }

func assertTopological(t *testing.T, tools []ToolDefinition, order []string) {
	t.Helper()
	require.Len(t, order, len(tools))
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	for _, tool := range tools {
		for _, dep := range tool.DependsOn {
			assert.Less(t, pos[dep], pos[tool.Name], "%s must come after %s", tool.Name, dep)
		}
	}
}

func TestBuildOrder(t *testing.T) {
	tests := []struct {
		name  string
		tools []ToolDefinition
		want  []string
	}{
		{
			name:  "empty",
			tools: nil,
			want:  []string{},
		},
		{
			name:  "independent tools keep declaration order",
			tools: names(prompt("C", ""), prompt("A", ""), prompt("B", "")),
			want:  []string{"C", "A", "B"},
		},
		{
			name:  "dependency declared after dependent",
			tools: names(prompt("B", "", "A"), prompt("A", "")),
			want:  []string{"A", "B"},
		},
		{
			name: "diamond",
			tools: names(
				prompt("D", "", "B", "C"),
				prompt("B", "", "A"),
				prompt("C", "", "A"),
				prompt("A", ""),
			),
			want: []string{"A", "B", "C", "D"},
		},
		{
			name: "fifo tie break",
			tools: names(
				prompt("X", ""),
				prompt("Y", "", "X"),
				prompt("Z", ""),
			),
			want: []string{"X", "Z", "Y"},
		},
		{
			name:  "repeated dependency counts once",
			tools: names(prompt("A", ""), prompt("B", "", "A", "A")),
			want:  []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildOrder(tt.tools)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assertTopological(t, tt.tools, got)
		})
	}
}

func TestBuildOrder_Deterministic(t *testing.T) {
	tools := names(
		prompt("Report", "", "Analyze", "Fetch"),
		prompt("Analyze", "", "Fetch", "Translate"),
		prompt("Fetch", "", "Translate"),
		prompt("Translate", ""),
		prompt("Audit", ""),
	)
	first, err := BuildOrder(tools)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := BuildOrder(tools)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assertTopological(t, tools, first)
}

func TestBuildOrder_Errors(t *testing.T) {
	t.Run("two tool cycle", func(t *testing.T) {
		_, err := BuildOrder(names(prompt("A", "", "B"), prompt("B", "", "A")))
		require.ErrorIs(t, err, ErrCycleDetected)
		assert.Contains(t, err.Error(), "[A B]")
	})

	t.Run("cycle lists only unresolved tools", func(t *testing.T) {
		_, err := BuildOrder(names(
			prompt("Root", ""),
			prompt("A", "", "Root", "C"),
			prompt("B", "", "A"),
			prompt("C", "", "B"),
		))
		require.ErrorIs(t, err, ErrCycleDetected)
		assert.Contains(t, err.Error(), "[A B C]")
		assert.NotContains(t, err.Error(), "Root")
	})

	t.Run("self dependency", func(t *testing.T) {
		_, err := BuildOrder(names(prompt("A", "", "A")))
		assert.ErrorIs(t, err, ErrCycleDetected)
	})

	t.Run("unknown dependency", func(t *testing.T) {
		_, err := BuildOrder(names(prompt("A", "", "Ghost")))
		require.ErrorIs(t, err, ErrUnknownDependency)
		assert.Contains(t, err.Error(), "Ghost")
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := BuildOrder(names(prompt("A", ""), prompt("A", "")))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestExecutionPlan(t *testing.T) {
	plan, err := NewExecutionPlan(names(prompt("B", "b", "A"), prompt("A", "a")))
	require.NoError(t, err)

	assert.Equal(t, 2, plan.Len())
	assert.Equal(t, []string{"A", "B"}, plan.Order())

	order := plan.Order()
	order[0] = "mutated"
	assert.Equal(t, []string{"A", "B"}, plan.Order())

	def, ok := plan.Tool("B")
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, def.DependsOn)

	tools := plan.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "A", tools[0].Name)
}
