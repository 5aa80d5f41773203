package mcp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolRegistry_RegisterAndGet(t *testing.T) {
	registry := NewToolRegistry()

	tool := &ToolMetadata{
		Name:         "rag_search",
		Description:  "Search the retrieval index for relevant snippets",
		Category:     CategoryRetrieval,
		DeferLoading: false,
		Keywords:     []string{"search", "recall", "find"},
	}
	registry.Register(tool)

	retrieved, ok := registry.Get("rag_search")
	assert.True(t, ok)
	assert.Equal(t, tool.Name, retrieved.Name)
	assert.Equal(t, tool.Description, retrieved.Description)
	assert.Equal(t, tool.Category, retrieved.Category)
	assert.Equal(t, tool.Keywords, retrieved.Keywords)
}

func TestToolRegistry_RegisterNilOrEmptyIgnored(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(nil)
	registry.Register(&ToolMetadata{Name: "", Description: "no name"})
	assert.Equal(t, 0, registry.Count())
}

func TestToolRegistry_RegisterAll(t *testing.T) {
	registry := NewToolRegistry()
	tools := []*ToolMetadata{
		{Name: "rag_search", Description: "Search index", Category: CategoryRetrieval},
		{Name: "find_files_by_name", Description: "Glob for files", Category: CategoryFilesystem},
		{Name: "explain_code", Description: "Subagent explain loop", Category: CategoryResearch},
	}
	registry.RegisterAll(tools)
	assert.Equal(t, 3, registry.Count())
}

func TestToolRegistry_Get_NotFound(t *testing.T) {
	registry := NewToolRegistry()
	_, ok := registry.Get("nonexistent")
	assert.False(t, ok)
}

func TestToolRegistry_ListByCategory(t *testing.T) {
	registry := NewToolRegistry()
	registry.RegisterAll([]*ToolMetadata{
		{Name: "rag_search", Description: "Search", Category: CategoryRetrieval},
		{Name: "find_files_by_name", Description: "Glob", Category: CategoryFilesystem},
		{Name: "read_file_lines", Description: "Read", Category: CategoryFilesystem},
	})

	fsTools := registry.ListByCategory(CategoryFilesystem)
	assert.Equal(t, 2, len(fsTools))

	retrievalTools := registry.ListByCategory(CategoryRetrieval)
	assert.Equal(t, 1, len(retrievalTools))
}

func TestToolRegistry_ListDeferred(t *testing.T) {
	registry := NewToolRegistry()
	registry.RegisterAll([]*ToolMetadata{
		{Name: "tool1", Description: "Tool 1", Category: CategoryResearch, DeferLoading: true},
		{Name: "tool2", Description: "Tool 2", Category: CategoryResearch, DeferLoading: false},
		{Name: "tool3", Description: "Tool 3", Category: CategoryRetrieval, DeferLoading: true},
	})

	assert.Equal(t, 2, len(registry.ListDeferred()))
	assert.Equal(t, 1, len(registry.ListNonDeferred()))
}

func TestToolRegistry_SearchExactMatch(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&ToolMetadata{
		Name:        "rag_search",
		Description: "Search the retrieval index",
		Category:    CategoryRetrieval,
		Keywords:    []string{"find", "recall"},
	})

	results := registry.Search("rag_search")
	assert.Equal(t, 1, len(results))
	assert.Equal(t, "rag_search", results[0].Tool.Name)
	assert.Equal(t, 3, results[0].Score)
	assert.Contains(t, results[0].MatchReason, "exact")
}

func TestToolRegistry_SearchContains(t *testing.T) {
	registry := NewToolRegistry()
	registry.RegisterAll([]*ToolMetadata{
		{Name: "rag_search", Description: "Search index", Category: CategoryRetrieval},
		{Name: "web_search", Description: "Search the web", Category: CategoryResearch},
		{Name: "read_file_lines", Description: "Read lines", Category: CategoryFilesystem},
	})

	results := registry.Search("search")
	assert.Equal(t, 2, len(results))
	for _, r := range results {
		assert.Equal(t, 2, r.Score)
		assert.Contains(t, r.MatchReason, "name contains")
	}
}

func TestToolRegistry_SearchKeyword(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&ToolMetadata{
		Name:        "rag_search",
		Description: "Search the retrieval index",
		Category:    CategoryRetrieval,
		Keywords:    []string{"find", "recall", "lookup"},
	})

	results := registry.Search("recall")
	assert.Equal(t, 1, len(results))
	assert.Equal(t, 1, results[0].Score)
	assert.Contains(t, results[0].MatchReason, "keyword")
}

func TestToolRegistry_SearchByCategory(t *testing.T) {
	registry := NewToolRegistry()
	registry.RegisterAll([]*ToolMetadata{
		{Name: "rag_search", Description: "Search", Category: CategoryRetrieval},
		{Name: "semantic_search", Description: "Search", Category: CategoryResearch},
	})

	results := registry.SearchByCategory("search", CategoryRetrieval)
	assert.Equal(t, 1, len(results))
	assert.Equal(t, "rag_search", results[0].Tool.Name)
}

func TestToolRegistry_SearchRegex(t *testing.T) {
	registry := NewToolRegistry()
	registry.RegisterAll([]*ToolMetadata{
		{Name: "rag_search", Description: "Search", Category: CategoryRetrieval},
		{Name: "rag_ingest", Description: "Ingest", Category: CategoryRetrieval},
		{Name: "explain_code", Description: "Explain", Category: CategoryResearch},
	})

	results := registry.Search("rag_.*")
	assert.Equal(t, 2, len(results))

	results = registry.Search("(?i)RAG")
	assert.True(t, len(results) >= 2)
}

func TestToolRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewToolRegistry()
	registry.RegisterAll([]*ToolMetadata{
		{Name: "tool1", Description: "Tool 1", Category: CategoryResearch},
		{Name: "tool2", Description: "Tool 2", Category: CategoryRetrieval},
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = registry.Search("tool")
			_ = registry.List()
			_ = registry.Count()
		}()
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			registry.Register(&ToolMetadata{
				Name:        "concurrent_tool_" + string(rune('a'+idx)),
				Description: "Concurrent tool",
				Category:    CategoryResearch,
			})
		}(i)
	}
	wg.Wait()

	assert.True(t, registry.Count() >= 2)
}

func TestToolRegistry_NoMatches(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&ToolMetadata{Name: "rag_search", Description: "Search", Category: CategoryRetrieval})

	results := registry.Search("nonexistent_pattern_xyz")
	assert.Equal(t, 0, len(results))
}
