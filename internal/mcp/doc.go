// Package mcp exposes the devteam subagent tool surface over MCP
// (github.com/modelcontextprotocol/go-sdk/mcp): research tools backed by a
// bounded LLM loop (explain_code, ask, web_search), a retrieval tool over
// the chromem-go/qdrant index (rag_search), and two filesystem tools rooted
// at the task's repo_root (find_files_by_name, read_file_lines). Tool
// metadata is kept in a searchable ToolRegistry so clients can discover
// tools via tool_search/tool_list instead of loading every definition
// upfront.
package mcp
