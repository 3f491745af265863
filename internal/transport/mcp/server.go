// Package mcp exposes the memory service as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdlog "log"

	"github.com/google/uuid"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/internal/service/memory"
	"github.com/twohreichel/pisovereign/pkg/log"
)

const (
	ToolRemember = "remember"
	ToolRecall   = "recall"
	ToolForget   = "forget"
	ToolStats    = "memory_stats"
)

// Server serves the memory tools for a single configured user.
type Server struct {
	svc    *memory.Service
	userID uuid.UUID
	mcp    *server.MCPServer
	in     io.Reader
	out    io.Writer
}

func NewServer(svc *memory.Service, userID uuid.UUID, in io.Reader, out io.Writer) *Server {
	s := &Server{
		svc:    svc,
		userID: userID,
		in:     in,
		out:    out,
		mcp: server.NewMCPServer(
			core.AppName,
			core.AppVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying protocol server, e.g. for in-process clients.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Start blocks serving stdio until ctx is cancelled or input ends.
func (s *Server) Start(ctx context.Context) error {
	logger := log.Component(ctx, "mcp")
	logger.Info().Str("user_id", s.userID.String()).Msg("mcp server listening on stdio")

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(stdlog.New(logger, "", 0))

	err := stdio.Listen(ctx, s.in, s.out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return nil
}

func (s *Server) registerTools() {
	types := make([]string, 0, len(core.AllMemoryTypes()))
	for _, t := range core.AllMemoryTypes() {
		types = append(types, t.Token())
	}

	s.mcp.AddTool(mcpproto.NewTool(ToolRemember,
		mcpproto.WithDescription("Store a piece of information in long-term memory. Near-duplicates are merged into the existing memory."),
		mcpproto.WithString("content", mcpproto.Required(), mcpproto.Description("What to remember")),
		mcpproto.WithString("type", mcpproto.Enum(types...), mcpproto.Description("Kind of memory, defaults to fact")),
		mcpproto.WithNumber("importance", mcpproto.Min(0), mcpproto.Max(1), mcpproto.Description("Importance between 0 and 1, defaults to 0.5")),
		mcpproto.WithArray("tags", mcpproto.Items(map[string]any{"type": "string"}), mcpproto.Description("Optional labels")),
	), s.handleRemember)

	s.mcp.AddTool(mcpproto.NewTool(ToolRecall,
		mcpproto.WithDescription("Retrieve memories relevant to a query, formatted for a prompt."),
		mcpproto.WithString("query", mcpproto.Required(), mcpproto.Description("Question or topic to look up")),
	), s.handleRecall)

	s.mcp.AddTool(mcpproto.NewTool(ToolForget,
		mcpproto.WithDescription("Delete a memory by id."),
		mcpproto.WithString("id", mcpproto.Required(), mcpproto.Description("Memory id (uuid)")),
	), s.handleForget)

	s.mcp.AddTool(mcpproto.NewTool(ToolStats,
		mcpproto.WithDescription("Summarize stored memories: totals, embeddings, average importance and per-type counts."),
	), s.handleStats)
}

func (s *Server) handleRemember(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil || content == "" {
		return mcpproto.NewToolResultError("content is required"), nil
	}

	memType := core.MemoryTypeFact
	if token := req.GetString("type", ""); token != "" {
		t, ok := core.LookupMemoryType(token)
		if !ok {
			return mcpproto.NewToolResultError(fmt.Sprintf("unknown memory type %q", token)), nil
		}
		memType = t
	}

	importance := req.GetFloat("importance", float64(core.DefaultImportance))
	tags := req.GetStringSlice("tags", nil)
	if tags == nil {
		tags = []string{}
	}

	m := core.NewMemory(s.userID, content, memory.Summarize(content), memType).
		WithImportance(float32(importance)).
		WithTags(tags)

	stored, err := s.svc.Store(ctx, m)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("remember tool failed")
		return mcpproto.NewToolResultErrorFromErr("failed to store memory", err), nil
	}

	if stored.ID != m.ID {
		return mcpproto.NewToolResultText(fmt.Sprintf("Merged into existing memory %s", stored.ID)), nil
	}
	return mcpproto.NewToolResultText(fmt.Sprintf("Stored memory %s", stored.ID)), nil
}

func (s *Server) handleRecall(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil || query == "" {
		return mcpproto.NewToolResultError("query is required"), nil
	}

	found, err := s.svc.RetrieveContext(ctx, s.userID, query)
	if err != nil {
		return mcpproto.NewToolResultErrorFromErr("failed to recall", err), nil
	}
	if len(found) == 0 {
		return mcpproto.NewToolResultText("No relevant memories found."), nil
	}
	return mcpproto.NewToolResultText(memory.FormatContextForPrompt(found)), nil
}

func (s *Server) handleForget(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcpproto.NewToolResultError("id is required"), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return mcpproto.NewToolResultError(fmt.Sprintf("invalid id %q", raw)), nil
	}

	existing, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcpproto.NewToolResultErrorFromErr("failed to look up memory", err), nil
	}
	if existing == nil || existing.UserID != s.userID {
		return mcpproto.NewToolResultError(fmt.Sprintf("memory %s not found", id)), nil
	}

	if err := s.svc.Delete(ctx, id); err != nil {
		return mcpproto.NewToolResultErrorFromErr("failed to delete memory", err), nil
	}
	return mcpproto.NewToolResultText(fmt.Sprintf("Forgot memory %s", id)), nil
}

type statsPayload struct {
	Total          int            `json:"total"`
	WithEmbeddings int            `json:"with_embeddings"`
	AvgImportance  float32        `json:"avg_importance"`
	ByType         map[string]int `json:"by_type"`
}

func (s *Server) handleStats(ctx context.Context, _ mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	stats, err := s.svc.Stats(ctx, s.userID)
	if err != nil {
		return mcpproto.NewToolResultErrorFromErr("failed to compute stats", err), nil
	}

	payload := statsPayload{
		Total:          stats.TotalCount,
		WithEmbeddings: stats.WithEmbeddings,
		AvgImportance:  stats.AvgImportance,
		ByType:         make(map[string]int, len(stats.ByType)),
	}
	for _, tc := range stats.ByType {
		if tc.Count > 0 {
			payload.ByType[tc.Type.Token()] = tc.Count
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return mcpproto.NewToolResultText(string(data)), nil
}
