package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/taskweave"
	"github.com/ZanzyTHEbar/taskweave/internal/configgen"
	"github.com/ZanzyTHEbar/taskweave/internal/llm"
	"github.com/ZanzyTHEbar/taskweave/internal/tools"
)

func testDoc() taskweave.Document {
	return taskweave.Document{
		Agent: taskweave.AgentSettings{Framework: "graph"},
		Tools: []taskweave.ToolDefinition{
			{Name: "Echo", Spec: taskweave.PromptSpec{Template: "Echo {input}"}},
		},
	}
}

func connect(t *testing.T, b Builder) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server, err := b.Build(ctx)
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err = server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError)
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestBuild_RejectsInvalidDocument(t *testing.T) {
	doc := taskweave.Document{Agent: taskweave.AgentSettings{Framework: "crewai"}}
	_, err := Builder{Doc: doc}.Build(context.Background())
	assert.ErrorIs(t, err, taskweave.ErrUnsupportedFramework)
}

func TestRunTool(t *testing.T) {
	session := connect(t, Builder{Doc: testDoc()})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run",
		Arguments: map[string]any{"question": "hola"},
	})
	require.NoError(t, err)
	out := decode[RunOutput](t, res)
	assert.Equal(t, "hola", out.Question)
	assert.Equal(t, "graph", out.Framework)
	assert.Equal(t, llm.MockEcho("Echo hola"), out.Outputs["Echo"])
}

func TestRunTool_MissingQuestion(t *testing.T) {
	session := connect(t, Builder{Doc: testDoc()})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run",
		Arguments: map[string]any{"question": ""},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListTools(t *testing.T) {
	session := connect(t, Builder{Doc: testDoc()})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "list_tools", Arguments: map[string]any{}})
	require.NoError(t, err)
	out := decode[ListOutput](t, res)
	assert.Equal(t, []string{"Echo"}, out.Order)
}

func TestGenerateConfigTool(t *testing.T) {
	gen := configgen.New(tools.Default(), llm.NewMock())
	session := connect(t, Builder{Doc: testDoc(), Generator: gen})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "generate_config",
		Arguments: map[string]any{"question": "Compare Q1 and Q2"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)

	var wire struct {
		Document json.RawMessage `json:"document"`
	}
	require.NoError(t, json.Unmarshal(raw, &wire))
	doc, err := taskweave.ParseDocument(wire.Document)
	require.NoError(t, err)
	assert.Len(t, doc.Tools, 3)
}
