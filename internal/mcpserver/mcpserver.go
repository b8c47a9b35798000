// Package mcpserver exposes orchestration runs as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/taskweave"
	"github.com/ZanzyTHEbar/taskweave/internal/configgen"
)

const (
	Name    = "taskweave"
	Version = "0.1.0"
)

// RunInput is the argument of the run tool.
type RunInput struct {
	Question string `json:"question" jsonschema:"the question to run through the configured tools"`
}

// RunOutput is the structured result of the run tool.
type RunOutput struct {
	Question       string         `json:"question"`
	Outputs        map[string]any `json:"outputs"`
	Framework      string         `json:"framework"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
}

// ListOutput is the structured result of the list_tools tool.
type ListOutput struct {
	Framework string   `json:"framework"`
	Order     []string `json:"order"`
}

// GenerateOutput is the structured result of the generate_config tool. The
// document is carried in its wire form.
type GenerateOutput struct {
	Document map[string]any `json:"document"`
}

// Builder assembles the MCP server.
type Builder struct {
	Doc       taskweave.Document
	Options   []taskweave.Option
	Generator *configgen.Generator
	Logger    *slog.Logger
}

// Build validates the document and registers the tools.
func (b Builder) Build(ctx context.Context) (*mcp.Server, error) {
	if b.Logger == nil {
		b.Logger = slog.Default()
	}
	probe, err := b.orchestrator(ctx)
	if err != nil {
		return nil, err
	}

	server := mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run",
		Description: fmt.Sprintf("Runs a question through the %d configured tools (%v) and returns every tool output.", probe.Plan().Len(), probe.Plan().Order()),
	}, b.run)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tools",
		Description: "Lists the configured tools in execution order.",
	}, func(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, ListOutput, error) {
		return nil, ListOutput{Framework: string(probe.Framework()), Order: probe.Plan().Order()}, nil
	})

	if b.Generator != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "generate_config",
			Description: "Selects registry tools for a question and returns a configuration document.",
		}, b.generate)
	}
	return server, nil
}

func (b Builder) orchestrator(ctx context.Context) (*taskweave.Orchestrator, error) {
	opts := append(append([]taskweave.Option(nil), b.Options...),
		taskweave.WithLogger(b.Logger),
		taskweave.WithStore(taskweave.NewResultStore()))
	return taskweave.New(ctx, b.Doc, opts...)
}

func (b Builder) run(ctx context.Context, _ *mcp.CallToolRequest, in RunInput) (*mcp.CallToolResult, RunOutput, error) {
	o, err := b.orchestrator(ctx)
	if err != nil {
		return nil, RunOutput{}, err
	}
	resp, err := o.Invoke(ctx, taskweave.Request{Question: in.Question})
	if err != nil {
		return nil, RunOutput{}, err
	}
	b.Logger.Info("mcp run completed", "tools", len(resp.Outputs))

	out := RunOutput{
		Question:  resp.Question,
		Outputs:   make(map[string]any, len(resp.Outputs)),
		Framework: string(o.Framework()),
	}
	for name, r := range resp.Outputs {
		out.Outputs[name] = r.Output
	}
	if resp.Metadata != nil {
		out.FallbackReason = resp.Metadata.FallbackReason
	}
	return nil, out, nil
}

func (b Builder) generate(ctx context.Context, _ *mcp.CallToolRequest, in RunInput) (*mcp.CallToolResult, GenerateOutput, error) {
	if in.Question == "" {
		return nil, GenerateOutput{}, taskweave.NewMissingQuestionError()
	}
	doc, err := b.Generator.Generate(ctx, in.Question)
	if err != nil {
		return nil, GenerateOutput{}, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, GenerateOutput{}, err
	}
	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, GenerateOutput{}, err
	}
	return nil, GenerateOutput{Document: wire}, nil
}

// RunStdio serves over stdin and stdout until ctx is done.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves the streamable HTTP transport.
func HTTPHandler(server *mcp.Server, stateless bool) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})
}
