package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// RetrievalClient is the narrow interface the subagent tool surface needs
// from the retrieval index (chromem-go or qdrant backed, see SPEC_FULL.md §3).
type RetrievalClient interface {
	Search(ctx context.Context, query string, limit int) ([]RetrievedSnippet, error)
}

// RetrievedSnippet is a single match returned from a retrieval search.
type RetrievedSnippet struct {
	Path    string  `json:"path"`
	Excerpt string  `json:"excerpt"`
	Score   float64 `json:"score"`
}

// FileSystem is the narrow interface the filesystem tools need. A real
// implementation is rooted at repoRoot and refuses to walk above it.
type FileSystem interface {
	FindByName(ctx context.Context, pattern string) ([]string, error)
	ReadLines(ctx context.Context, path string, start, end int) (string, error)
}

// ResearchRunner executes a bounded subagent loop (explain_code / ask /
// web_search) and returns its final answer as plain text.
type ResearchRunner interface {
	Run(ctx context.Context, kind, prompt string) (string, error)
}

// Server exposes the devteam subagent tool surface over MCP. No engine node
// holds a client to this server, and the engine itself never imports this
// package, keeping the graph free of any MCP transport concern.
type Server struct {
	mcp          *mcp.Server
	toolRegistry *ToolRegistry
	logger       *zap.Logger

	retrieval RetrievalClient
	fs        FileSystem
	research  ResearchRunner
}

// NewServer constructs the MCP server and registers the full tool surface.
// Any of retrieval/fs/research may be nil in tests that only exercise a
// subset of tools; calling an unconfigured tool returns a CallToolResult
// with IsError set, not a Go error.
func NewServer(logger *zap.Logger, retrieval RetrievalClient, fs FileSystem, research ResearchRunner) *Server {
	impl := &mcp.Implementation{
		Name:    "devteam",
		Version: "0.1.0",
	}
	s := &Server{
		mcp:          mcp.NewServer(impl, nil),
		toolRegistry: NewToolRegistry(),
		logger:       logger,
		retrieval:    retrieval,
		fs:           fs,
		research:     research,
	}

	s.registerDomainTools()
	s.registerSearchTools()

	return s
}

// Run serves the registered tools over the given transport until ctx is
// cancelled or the transport closes.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcp.Run(ctx, transport)
}

// toolMeta returns the registry-sourced metadata attached to an MCP tool's
// `_meta` field, or nil if the tool isn't registered (e.g. in partial test
// setups). This lets clients introspect category/defer_loading without a
// second round trip through tool_list.
func (s *Server) toolMeta(name string) map[string]any {
	tool, ok := s.toolRegistry.Get(name)
	if !ok {
		return nil
	}
	return map[string]any{
		"category":      string(tool.Category),
		"defer_loading": tool.DeferLoading,
	}
}

// registerTool is a small helper that both registers tool metadata in the
// searchable registry and wires the MCP handler, so the two never drift
// apart (a tool present in one but not the other was a recurring bug class
// in the teacher's own tool set).
func registerTool[In, Out any](s *Server, meta *ToolMetadata, tool *mcp.Tool, handler func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error)) {
	s.toolRegistry.Register(meta)
	tool.Meta = s.toolMeta(meta.Name)
	mcp.AddTool(s.mcp, tool, handler)
}

// errorResult builds a CallToolResult carrying an error message as text,
// following the teacher's pattern of surfacing tool failures as content
// rather than protocol-level errors when the failure is domain-specific
// (missing config, path outside repo root) rather than a malformed call.
func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}
