package taskweave

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument_BareListDefaultsAgent(t *testing.T) {
	doc, err := ParseDocument([]byte(`[
		{"name": "Translate", "type": "llm_prompt", "prompt_template": "Translate: {input}"},
		{"name": "Analyze", "type": "analysis", "prompt_template": "Analyze: {input}", "input": ["Translate"]}
	]`))
	require.NoError(t, err)

	assert.Equal(t, DefaultAgentSettings(), doc.Agent)
	require.Len(t, doc.Tools, 2)
	assert.Equal(t, KindPrompt, doc.Tools[0].Kind())
	assert.Equal(t, PromptSpec{Template: "Translate: {input}"}, doc.Tools[0].Spec)
	assert.Equal(t, KindAnalysis, doc.Tools[1].Kind())
	assert.Equal(t, []string{"Translate"}, doc.Tools[1].DependsOn)
}

func TestParseDocument_ObjectShape(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"agent": {"framework": "sequential"},
		"tools": [
			{"name": "Fetch", "kind": "remote-call", "endpoint": "http://example.test/data",
			 "params_from_input": ["question"], "args": {"limit": 5}}
		],
		"metadata": {"source": "test"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "sequential", doc.Agent.Framework)
	assert.Equal(t, DefaultModel, doc.Agent.Model)
	assert.Equal(t, DefaultSystemPrompt, doc.Agent.SystemPrompt)
	assert.Equal(t, "test", doc.Metadata["source"])

	spec, ok := doc.Tools[0].Spec.(RemoteCallSpec)
	require.True(t, ok)
	assert.Equal(t, "POST", spec.Method)
	assert.Equal(t, []string{"question"}, spec.Params)
	assert.Equal(t, 5.0, spec.Args["limit"])
}

func TestParseDocument_YAML(t *testing.T) {
	doc, err := ParseDocument([]byte(`
agent:
  framework: langgraph
  model: gemini-2.5-pro
tools:
  - name: Translate
    kind: prompt
    template: "Translate: {input}"
  - name: Fetch
    kind: remote_call
    endpoint: http://example.test
    method: get
    depends_on: [Translate]
`))
	require.NoError(t, err)
	assert.Equal(t, "langgraph", doc.Agent.Framework)
	assert.Equal(t, "gemini-2.5-pro", doc.Agent.Model)
	require.Len(t, doc.Tools, 2)
	assert.Equal(t, "GET", doc.Tools[1].Spec.(RemoteCallSpec).Method)
	assert.Equal(t, []string{"Translate"}, doc.Tools[1].DependsOn)
}

func TestParseDocument_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "  ", wantErr: ErrInvalidConfig},
		{name: "object without tools", input: `{"agent": {"framework": "graph"}}`, wantErr: ErrInvalidConfig},
		{name: "unknown kind", input: `[{"name": "X", "kind": "shell"}]`, wantErr: ErrUnsupportedKind},
		{name: "missing kind", input: `[{"name": "X"}]`, wantErr: ErrUnsupportedKind},
		{name: "nameless tool", input: `[{"kind": "prompt"}]`, wantErr: ErrInvalidConfig},
		{name: "remote call without endpoint", input: `[{"name": "X", "kind": "remote-call"}]`, wantErr: ErrInvalidConfig},
		{name: "tools is not a list", input: `{"tools": 3}`, wantErr: ErrInvalidConfig},
		{name: "not a document", input: "::: [", wantErr: ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAsConfigError(t *testing.T) {
	inner := NewUnsupportedKindError("X", "shell")
	wrapped := fmt.Errorf("decode tool: %w", inner)

	assert.Same(t, inner, asConfigError(inner))
	got := asConfigError(wrapped)
	assert.Same(t, inner, got)
	assert.NotErrorIs(t, got, ErrInvalidConfig)

	plain := asConfigError(errors.New("unexpected end of JSON input"))
	assert.ErrorIs(t, plain, ErrInvalidConfig)
}

func TestParseFramework(t *testing.T) {
	tests := []struct {
		in      string
		want    Framework
		wantErr bool
	}{
		{in: "", want: FrameworkGraph},
		{in: "  GRAPH ", want: FrameworkGraph},
		{in: "Sequential", want: FrameworkSequential},
		{in: "delegated", want: FrameworkDelegated},
		{in: "langgraph", want: FrameworkGraph},
		{in: "LangChain", want: FrameworkDelegated},
		{in: "direct", want: FrameworkSequential},
		{in: "bogus", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFramework(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFramework)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolDefinition_MarshalRoundTripKeepsCurrentKeys(t *testing.T) {
	def := ToolDefinition{
		Name:      "Fetch",
		DependsOn: []string{"Translate"},
		Spec:      RemoteCallSpec{Endpoint: "http://x", Method: "GET", Params: []string{"question"}},
	}
	data, err := json.Marshal(def)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Fetch","kind":"remote-call","endpoint":"http://x","method":"GET","params":["question"],"dependsOn":["Translate"]}`, string(data))

	var back ToolDefinition
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, def, back)
}

func TestRequestText(t *testing.T) {
	assert.Equal(t, "a", Request{Input: "a", Question: "b"}.Text())
	assert.Equal(t, "b", Request{Input: "  ", Question: "b"}.Text())
	assert.Equal(t, "", Request{}.Text())
}
