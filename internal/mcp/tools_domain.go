package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerDomainTools wires the subagent tool surface named in
// SPEC_FULL.md §3: three research tools backed by a bounded LLM loop, one
// retrieval tool backed by the chromem-go/qdrant index, and two filesystem
// tools rooted at the task's repo_root.
func (s *Server) registerDomainTools() {
	s.registerResearchTools()
	s.registerRetrievalTool()
	s.registerFilesystemTools()
}

// ===== research tools =====

type explainCodeInput struct {
	Path     string `json:"path" jsonschema:"required,Repo-relative path of the file or directory to explain"`
	Question string `json:"question,omitempty" jsonschema:"Optional focusing question, e.g. 'why does this retry'"`
}

type askInput struct {
	Question string `json:"question" jsonschema:"required,Free-form question for the research subagent"`
}

type webSearchInput struct {
	Query string `json:"query" jsonschema:"required,Search query"`
}

type researchOutput struct {
	Answer string `json:"answer"`
}

func (s *Server) registerResearchTools() {
	registerTool(s, &ToolMetadata{
		Name:        "explain_code",
		Description: "Run a bounded subagent that reads a file or directory and explains what it does and why.",
		Category:    CategoryResearch,
		Keywords:    []string{"understand", "explain", "read"},
	}, &mcp.Tool{
		Name:        "explain_code",
		Description: "Explain a file or directory by path, optionally focused by a question.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in explainCodeInput) (*mcp.CallToolResult, researchOutput, error) {
		if s.research == nil {
			return errorResult("explain_code: no research runner configured"), researchOutput{}, nil
		}
		prompt := in.Path
		if in.Question != "" {
			prompt = in.Path + ": " + in.Question
		}
		answer, err := s.research.Run(ctx, "explain_code", prompt)
		if err != nil {
			return errorResult("explain_code: %v", err), researchOutput{}, nil
		}
		return nil, researchOutput{Answer: answer}, nil
	})

	registerTool(s, &ToolMetadata{
		Name:        "ask",
		Description: "Run a bounded subagent that answers a free-form question about the repository.",
		Category:    CategoryResearch,
		Keywords:    []string{"question", "subagent"},
	}, &mcp.Tool{
		Name:        "ask",
		Description: "Ask the research subagent a free-form question about the repository under test.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in askInput) (*mcp.CallToolResult, researchOutput, error) {
		if s.research == nil {
			return errorResult("ask: no research runner configured"), researchOutput{}, nil
		}
		answer, err := s.research.Run(ctx, "ask", in.Question)
		if err != nil {
			return errorResult("ask: %v", err), researchOutput{}, nil
		}
		return nil, researchOutput{Answer: answer}, nil
	})

	registerTool(s, &ToolMetadata{
		Name:         "web_search",
		Description:  "Run a bounded subagent that searches the web and summarizes results.",
		Category:     CategoryResearch,
		DeferLoading: true,
		Keywords:     []string{"web", "internet", "search"},
	}, &mcp.Tool{
		Name:        "web_search",
		Description: "Search the web via a bounded research subagent and return a summarized answer.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in webSearchInput) (*mcp.CallToolResult, researchOutput, error) {
		if s.research == nil {
			return errorResult("web_search: no research runner configured"), researchOutput{}, nil
		}
		answer, err := s.research.Run(ctx, "web_search", in.Query)
		if err != nil {
			return errorResult("web_search: %v", err), researchOutput{}, nil
		}
		return nil, researchOutput{Answer: answer}, nil
	})
}

// ===== retrieval tool =====

type ragSearchInput struct {
	Query string `json:"query" jsonschema:"required,Natural-language query against the retrieval index"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum snippets to return (default 5)"`
}

type ragSearchOutput struct {
	Snippets []RetrievedSnippet `json:"snippets"`
	Count    int                `json:"count"`
}

func (s *Server) registerRetrievalTool() {
	registerTool(s, &ToolMetadata{
		Name:        "rag_search",
		Description: "Search the retrieval index (docs/knowledge plus indexed repo content) for relevant snippets.",
		Category:    CategoryRetrieval,
		Keywords:    []string{"search", "recall", "index", "knowledge"},
	}, &mcp.Tool{
		Name:        "rag_search",
		Description: "Search the retrieval index for snippets relevant to a natural-language query.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in ragSearchInput) (*mcp.CallToolResult, ragSearchOutput, error) {
		if s.retrieval == nil {
			return errorResult("rag_search: no retrieval client configured"), ragSearchOutput{}, nil
		}
		limit := in.Limit
		if limit <= 0 {
			limit = 5
		}
		snippets, err := s.retrieval.Search(ctx, in.Query, limit)
		if err != nil {
			return errorResult("rag_search: %v", err), ragSearchOutput{}, nil
		}
		return nil, ragSearchOutput{Snippets: snippets, Count: len(snippets)}, nil
	})
}

// ===== filesystem tools =====

type findFilesByNameInput struct {
	Pattern string `json:"pattern" jsonschema:"required,Glob pattern relative to repo_root, e.g. '**/*_test.go'"`
}

type findFilesByNameOutput struct {
	Paths []string `json:"paths"`
	Count int      `json:"count"`
}

type readFileLinesInput struct {
	Path  string `json:"path" jsonschema:"required,Repo-relative file path"`
	Start int    `json:"start,omitempty" jsonschema:"First line to read, 1-indexed (default 1)"`
	End   int    `json:"end,omitempty" jsonschema:"Last line to read, inclusive (default: end of file)"`
}

type readFileLinesOutput struct {
	Content string `json:"content"`
}

func (s *Server) registerFilesystemTools() {
	registerTool(s, &ToolMetadata{
		Name:        "find_files_by_name",
		Description: "Glob for files under repo_root by name pattern.",
		Category:    CategoryFilesystem,
		Keywords:    []string{"glob", "find", "list"},
	}, &mcp.Tool{
		Name:        "find_files_by_name",
		Description: "Find files under repo_root matching a glob pattern.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in findFilesByNameInput) (*mcp.CallToolResult, findFilesByNameOutput, error) {
		if s.fs == nil {
			return errorResult("find_files_by_name: no filesystem configured"), findFilesByNameOutput{}, nil
		}
		paths, err := s.fs.FindByName(ctx, in.Pattern)
		if err != nil {
			return errorResult("find_files_by_name: %v", err), findFilesByNameOutput{}, nil
		}
		return nil, findFilesByNameOutput{Paths: paths, Count: len(paths)}, nil
	})

	registerTool(s, &ToolMetadata{
		Name:        "read_file_lines",
		Description: "Read a line range from a file under repo_root.",
		Category:    CategoryFilesystem,
		Keywords:    []string{"read", "file", "lines"},
	}, &mcp.Tool{
		Name:        "read_file_lines",
		Description: "Read a range of lines from a file under repo_root.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in readFileLinesInput) (*mcp.CallToolResult, readFileLinesOutput, error) {
		if s.fs == nil {
			return errorResult("read_file_lines: no filesystem configured"), readFileLinesOutput{}, nil
		}
		start := in.Start
		if start <= 0 {
			start = 1
		}
		content, err := s.fs.ReadLines(ctx, in.Path, start, in.End)
		if err != nil {
			return errorResult("read_file_lines: %v", err), readFileLinesOutput{}, nil
		}
		return nil, readFileLinesOutput{Content: content}, nil
	})
}
