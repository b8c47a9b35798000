package taskweave

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ToolKind names the variant of a tool definition.
type ToolKind string

const (
	// KindPrompt renders a template with the question and sends it to the LLM.
	KindPrompt ToolKind = "prompt"
	// KindRemoteCall sends a JSON payload to an HTTP endpoint.
	KindRemoteCall ToolKind = "remote-call"
	// KindAnalysis renders a template with the full input bundle and sends it to the LLM.
	KindAnalysis ToolKind = "derived-analysis"
)

// kindAliases maps every accepted spelling, including the legacy config names, to a kind.
var kindAliases = map[string]ToolKind{
	"prompt":           KindPrompt,
	"llm_prompt":       KindPrompt,
	"remote-call":      KindRemoteCall,
	"remote_call":      KindRemoteCall,
	"api_call":         KindRemoteCall,
	"derived-analysis": KindAnalysis,
	"derived_analysis": KindAnalysis,
	"analysis":         KindAnalysis,
}

// ParseToolKind resolves a kind string (case-insensitive, legacy aliases accepted).
func ParseToolKind(s string) (ToolKind, bool) {
	kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	return kind, ok
}

// ToolSpec carries the kind-specific parameters of a tool.
// The set of implementations is closed: PromptSpec, RemoteCallSpec and AnalysisSpec.
type ToolSpec interface {
	Kind() ToolKind
	isToolSpec()
}

// PromptSpec is the parameter set of a prompt tool.
type PromptSpec struct {
	Template string
}

// RemoteCallSpec is the parameter set of a remote-call tool.
type RemoteCallSpec struct {
	Endpoint string
	Method   string
	// Params are names looked up in the input bundle to build the payload.
	Params []string
	// Args are static payload entries: literals, "$Tool.output.field" references or "=expression".
	Args    map[string]any
	Headers map[string]string
}

// AnalysisSpec is the parameter set of a derived-analysis tool.
type AnalysisSpec struct {
	Template string
}

func (PromptSpec) Kind() ToolKind     { return KindPrompt }
func (RemoteCallSpec) Kind() ToolKind { return KindRemoteCall }
func (AnalysisSpec) Kind() ToolKind   { return KindAnalysis }

func (PromptSpec) isToolSpec()     {}
func (RemoteCallSpec) isToolSpec() {}
func (AnalysisSpec) isToolSpec()   {}

// ToolDefinition is the immutable description of one tool.
type ToolDefinition struct {
	Name        string
	Description string
	DependsOn   []string
	Tags        []string
	Spec        ToolSpec
}

// Kind returns the kind of the tool's spec, or "" when no spec is set.
func (t ToolDefinition) Kind() ToolKind {
	if t.Spec == nil {
		return ""
	}
	return t.Spec.Kind()
}

// toolWire is the on-disk shape of a tool, including the legacy key names.
type toolWire struct {
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	Kind            string            `json:"kind,omitempty"`
	Type            string            `json:"type,omitempty"`
	Template        string            `json:"template,omitempty"`
	PromptTemplate  string            `json:"prompt_template,omitempty"`
	Endpoint        string            `json:"endpoint,omitempty"`
	Method          string            `json:"method,omitempty"`
	Params          []string          `json:"params,omitempty"`
	ParamsFromInput []string          `json:"params_from_input,omitempty"`
	Args            map[string]any    `json:"args,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	DependsOn       []string          `json:"dependsOn,omitempty"`
	DependsOnSnake  []string          `json:"depends_on,omitempty"`
	Input           []string          `json:"input,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyList(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

// UnmarshalJSON decodes a tool from either the current or the legacy key layout.
func (t *ToolDefinition) UnmarshalJSON(data []byte) error {
	var w toolWire
	if err := json.Unmarshal(data, &w); err != nil {
		return NewInvalidConfigError("malformed tool definition", err)
	}
	if strings.TrimSpace(w.Name) == "" {
		return NewInvalidConfigError("tool definition has no name", nil)
	}

	rawKind := firstNonEmpty(w.Kind, w.Type)
	kind, ok := ParseToolKind(rawKind)
	if !ok {
		return NewUnsupportedKindError(w.Name, rawKind)
	}

	def := ToolDefinition{
		Name:        w.Name,
		Description: w.Description,
		DependsOn:   firstNonEmptyList(w.DependsOn, w.DependsOnSnake, w.Input),
		Tags:        w.Tags,
	}
	template := firstNonEmpty(w.Template, w.PromptTemplate)
	switch kind {
	case KindPrompt:
		def.Spec = PromptSpec{Template: template}
	case KindAnalysis:
		def.Spec = AnalysisSpec{Template: template}
	case KindRemoteCall:
		if strings.TrimSpace(w.Endpoint) == "" {
			return NewInvalidConfigError(fmt.Sprintf("remote-call tool '%s' has no endpoint", w.Name), nil)
		}
		method := strings.ToUpper(strings.TrimSpace(w.Method))
		if method == "" {
			method = http.MethodPost
		}
		def.Spec = RemoteCallSpec{
			Endpoint: w.Endpoint,
			Method:   method,
			Params:   firstNonEmptyList(w.Params, w.ParamsFromInput),
			Args:     w.Args,
			Headers:  w.Headers,
		}
	}
	*t = def
	return nil
}

// MarshalJSON encodes a tool using the current key layout.
func (t ToolDefinition) MarshalJSON() ([]byte, error) {
	w := toolWire{
		Name:        t.Name,
		Description: t.Description,
		Kind:        string(t.Kind()),
		DependsOn:   t.DependsOn,
		Tags:        t.Tags,
	}
	switch spec := t.Spec.(type) {
	case PromptSpec:
		w.Template = spec.Template
	case AnalysisSpec:
		w.Template = spec.Template
	case RemoteCallSpec:
		w.Endpoint = spec.Endpoint
		w.Method = spec.Method
		w.Params = spec.Params
		w.Args = spec.Args
		w.Headers = spec.Headers
	}
	return json.Marshal(w)
}

// Result is one tool's recorded output.
type Result struct {
	Output any `json:"output"`
}

// Request is the input of one run. The first non-empty of Input and Question wins.
type Request struct {
	Input    string `json:"input,omitempty"`
	Question string `json:"question,omitempty"`
}

// Text returns the question carried by the request.
func (r Request) Text() string {
	return firstNonEmpty(strings.TrimSpace(r.Input), strings.TrimSpace(r.Question))
}

// Metadata annotates a response.
type Metadata struct {
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Response is the uniform result of a run.
type Response struct {
	Question string            `json:"question"`
	Outputs  map[string]Result `json:"outputs"`
	// Agent holds the delegated reasoner's own result, untouched.
	Agent    map[string]any `json:"agent,omitempty"`
	Metadata *Metadata      `json:"metadata,omitempty"`
}
