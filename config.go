package taskweave

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"gopkg.in/yaml.v3"
)

// Framework selects an execution strategy.
type Framework string

const (
	FrameworkSequential Framework = "sequential"
	FrameworkGraph      Framework = "graph"
	FrameworkDelegated  Framework = "delegated"
)

// frameworkAliases also accepts the names used by older tool configs.
var frameworkAliases = map[string]Framework{
	"sequential": FrameworkSequential,
	"direct":     FrameworkSequential,
	"graph":      FrameworkGraph,
	"langgraph":  FrameworkGraph,
	"delegated":  FrameworkDelegated,
	"langchain":  FrameworkDelegated,
}

// ParseFramework resolves a framework name. An empty name selects the graph strategy.
func ParseFramework(name string) (Framework, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return FrameworkGraph, nil
	}
	fw, ok := frameworkAliases[key]
	if !ok {
		return "", NewUnsupportedFrameworkError(name)
	}
	return fw, nil
}

const (
	DefaultModel        = "gemini-2.0-flash"
	DefaultSystemPrompt = "You are a task orchestrator that selects tools to solve the user request."
)

// AgentSettings is the "agent" block of a configuration document.
type AgentSettings struct {
	Framework    string `json:"framework,omitempty" yaml:"framework,omitempty"`
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// DefaultAgentSettings returns the settings used when a document omits them.
func DefaultAgentSettings() AgentSettings {
	return AgentSettings{
		Framework:    string(FrameworkGraph),
		Model:        DefaultModel,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// withDefaults fills empty fields from DefaultAgentSettings.
func (a AgentSettings) withDefaults() AgentSettings {
	d := DefaultAgentSettings()
	if a.Framework != "" {
		d.Framework = a.Framework
	}
	if a.Model != "" {
		d.Model = a.Model
	}
	if a.SystemPrompt != "" {
		d.SystemPrompt = a.SystemPrompt
	}
	return d
}

// Document is a normalized configuration document.
type Document struct {
	Agent    AgentSettings    `json:"agent"`
	Tools    []ToolDefinition `json:"tools"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

type documentWire struct {
	Agent    *AgentSettings   `json:"agent"`
	Tools    *json.RawMessage `json:"tools"`
	Metadata map[string]any   `json:"metadata"`
}

// ParseDocument decodes a JSON or YAML configuration document. It accepts either a
// bare list of tools or an object with "agent" and "tools".
func ParseDocument(data []byte) (Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Document{}, NewInvalidConfigError("configuration document is empty", nil)
	}
	if !json.Valid(data) {
		converted, err := yamlToJSON(data)
		if err != nil {
			return Document{}, NewInvalidConfigError("configuration is neither JSON nor YAML", err)
		}
		data = converted
	}

	if data[0] == '[' {
		var tools []ToolDefinition
		if err := json.Unmarshal(data, &tools); err != nil {
			return Document{}, asConfigError(err)
		}
		return Document{Agent: DefaultAgentSettings(), Tools: tools}, nil
	}

	var wire documentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Document{}, asConfigError(err)
	}
	if wire.Tools == nil {
		return Document{}, NewInvalidConfigError("configuration must contain 'tools'", nil)
	}
	var tools []ToolDefinition
	if err := json.Unmarshal(*wire.Tools, &tools); err != nil {
		return Document{}, asConfigError(err)
	}
	doc := Document{Agent: DefaultAgentSettings(), Tools: tools, Metadata: wire.Metadata}
	if wire.Agent != nil {
		doc.Agent = wire.Agent.withDefaults()
	}
	return doc, nil
}

// NormalizeDocument applies defaults to a document built in code.
func NormalizeDocument(doc Document) Document {
	doc.Agent = doc.Agent.withDefaults()
	return doc
}

// asConfigError keeps typed errors raised by ToolDefinition decoding and wraps the rest.
func asConfigError(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewInvalidConfigError("malformed configuration document", err)
}

// yamlToJSON re-encodes a YAML document as JSON so that a single decoding path is used.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
