package taskweave

import (
	"context"
	"sync"
)

// fakeLLM records prompts and answers with GenerateFn, or echoes the prompt.
type fakeLLM struct {
	mu         sync.Mutex
	prompts    []string
	GenerateFn func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.GenerateFn != nil {
		return f.GenerateFn(ctx, prompt)
	}
	return "reply:" + prompt, nil
}

func (f *fakeLLM) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type httpCall struct {
	Method, URL string
	Payload     map[string]any
}

// fakeHTTP records calls and answers with CallFn.
type fakeHTTP struct {
	mu     sync.Mutex
	calls  []httpCall
	CallFn func(ctx context.Context, method, url string, payload map[string]any) (any, error)
}

func (f *fakeHTTP) Call(ctx context.Context, method, url string, _ map[string]string, payload map[string]any) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, httpCall{Method: method, URL: url, Payload: payload})
	f.mu.Unlock()
	if f.CallFn != nil {
		return f.CallFn(ctx, method, url, payload)
	}
	return map[string]any{"ok": true}, nil
}

func (f *fakeHTTP) Calls() []httpCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]httpCall(nil), f.calls...)
}

func prompt(name, template string, deps ...string) ToolDefinition {
	return ToolDefinition{Name: name, DependsOn: deps, Spec: PromptSpec{Template: template}}
}

func analysis(name, template string, deps ...string) ToolDefinition {
	return ToolDefinition{Name: name, DependsOn: deps, Spec: AnalysisSpec{Template: template}}
}

func remote(name, endpoint string, params []string, deps ...string) ToolDefinition {
	return ToolDefinition{Name: name, DependsOn: deps, Spec: RemoteCallSpec{Endpoint: endpoint, Method: "POST", Params: params}}
}
