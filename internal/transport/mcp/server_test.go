package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/internal/providers/embedding"
	"github.com/twohreichel/pisovereign/internal/service/memory"
	"github.com/twohreichel/pisovereign/internal/storage/inmem"
)

var testUser = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

func newTestClient(t *testing.T) (*client.Client, *memory.Service) {
	t.Helper()
	ctx := context.Background()

	svc := memory.NewService(inmem.NewStore(), embedding.NewLocal(0), nil, memory.DefaultServiceConfig())
	srv := NewServer(svc, testUser, strings.NewReader(""), &strings.Builder{})

	cli, err := client.NewInProcessClient(srv.MCP())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })

	require.NoError(t, cli.Start(ctx))

	initReq := mcpproto.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpproto.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpproto.Implementation{Name: "test", Version: "0.0.1"}
	_, err = cli.Initialize(ctx, initReq)
	require.NoError(t, err)

	return cli, svc
}

func callTool(t *testing.T, cli *client.Client, name string, args map[string]any) (string, bool) {
	t.Helper()

	req := mcpproto.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := cli.CallTool(context.Background(), req)
	require.NoError(t, err)

	var sb strings.Builder
	for _, content := range res.Content {
		if text, ok := content.(mcpproto.TextContent); ok {
			sb.WriteString(text.Text)
		} else if textPtr, ok := content.(*mcpproto.TextContent); ok {
			sb.WriteString(textPtr.Text)
		}
	}
	return sb.String(), res.IsError
}

func TestListTools(t *testing.T) {
	cli, _ := newTestClient(t)

	resp, err := cli.ListTools(context.Background(), mcpproto.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range resp.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolRemember, ToolRecall, ToolForget, ToolStats}, names)
}

func TestRememberAndRecall(t *testing.T) {
	cli, svc := newTestClient(t)

	out, isErr := callTool(t, cli, ToolRemember, map[string]any{
		"content":    "Paris is the capital of France",
		"type":       "fact",
		"importance": 0.9,
		"tags":       []any{"geo", "europe"},
	})
	require.False(t, isErr, out)
	assert.Contains(t, out, "Stored memory")

	all, err := svc.List(context.Background(), core.NewMemoryQuery().ForUser(testUser))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, core.MemoryTypeFact, all[0].Type)
	assert.InDelta(t, 0.9, all[0].Importance, 1e-6)
	assert.Equal(t, []string{"geo", "europe"}, all[0].Tags)

	out, isErr = callTool(t, cli, ToolRecall, map[string]any{"query": "What is the capital of France?"})
	require.False(t, isErr, out)
	assert.Contains(t, out, "Relevant context from memory:")
	assert.Contains(t, out, "[Fact]")

	out, isErr = callTool(t, cli, ToolRecall, map[string]any{"query": "bicycle repair"})
	require.False(t, isErr)
	assert.Equal(t, "No relevant memories found.", out)
}

func TestRemember_Merge(t *testing.T) {
	cli, _ := newTestClient(t)

	args := map[string]any{"content": "User likes green tea", "type": "preference"}
	_, _ = callTool(t, cli, ToolRemember, args)
	out, isErr := callTool(t, cli, ToolRemember, args)

	require.False(t, isErr, out)
	assert.Contains(t, out, "Merged into existing memory")
}

func TestRemember_InvalidInput(t *testing.T) {
	cli, _ := newTestClient(t)

	out, isErr := callTool(t, cli, ToolRemember, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, out, "content is required")

	out, isErr = callTool(t, cli, ToolRemember, map[string]any{"content": "x", "type": "opinion"})
	assert.True(t, isErr)
	assert.Contains(t, out, "unknown memory type")
}

func TestForget(t *testing.T) {
	cli, svc := newTestClient(t)
	ctx := context.Background()

	stored, err := svc.StoreFact(ctx, testUser, "The wifi password is on the fridge", 0.6)
	require.NoError(t, err)
	foreign, err := svc.StoreFact(ctx, uuid.New(), "Someone else's secret", 0.6)
	require.NoError(t, err)

	out, isErr := callTool(t, cli, ToolForget, map[string]any{"id": "not-a-uuid"})
	assert.True(t, isErr)
	assert.Contains(t, out, "invalid id")

	out, isErr = callTool(t, cli, ToolForget, map[string]any{"id": foreign.ID.String()})
	assert.True(t, isErr)
	assert.Contains(t, out, "not found")

	out, isErr = callTool(t, cli, ToolForget, map[string]any{"id": stored.ID.String()})
	require.False(t, isErr, out)
	assert.Contains(t, out, "Forgot memory")

	got, err := svc.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStats(t *testing.T) {
	cli, svc := newTestClient(t)
	ctx := context.Background()

	_, err := svc.StorePreference(ctx, testUser, "I love hiking in the Alps", 0.8)
	require.NoError(t, err)
	_, err = svc.StoreFact(ctx, testUser, "My dog is called Rex", 0.6)
	require.NoError(t, err)

	out, isErr := callTool(t, cli, ToolStats, nil)
	require.False(t, isErr, out)

	var payload statsPayload
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, 2, payload.Total)
	assert.Equal(t, 2, payload.WithEmbeddings)
	assert.InDelta(t, 0.7, payload.AvgImportance, 1e-4)
	assert.Equal(t, map[string]int{"fact": 1, "preference": 1}, payload.ByType)
}

func TestStart_StopsOnEOF(t *testing.T) {
	svc := memory.NewService(inmem.NewStore(), embedding.NewLocal(0), nil, memory.DefaultServiceConfig())
	var out strings.Builder
	srv := NewServer(svc, testUser, strings.NewReader(""), &out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	cancel()

	assert.NoError(t, <-done)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
