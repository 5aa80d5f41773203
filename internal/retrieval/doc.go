// Package retrieval implements the retrieval index behind the subagent's
// rag_search tool: a chromem-go-backed adapter for local/dev use and a
// qdrant-backed adapter for production, both satisfying the same
// Search(ctx, query, limit) ([]mcp.RetrievedSnippet, error) shape consumed
// by internal/mcp's tool surface (SPEC_FULL.md §3). The engine's state
// machine never imports this package directly; cmd/devteam uses the
// chromem-go adapter only to index docs/knowledge before a run, and
// searches go through internal/mcp's rag_search tool.
package retrieval
