package retrieval

import (
	"context"
	"fmt"

	"github.com/anush008/fastembed-go"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devteam/internal/mcp"
)

// ChromemAdapter is the local/dev retrieval adapter: an embedded chromem-go
// vector store with fastembed-go doing local embedding, no external API
// calls (SPEC_FULL.md §3).
type ChromemAdapter struct {
	collection *chromem.Collection
	embedder   *fastembed.FlagEmbedding
	logger     *zap.Logger
}

// NewChromemAdapter opens (or creates) a persistent chromem-go database at
// dbPath and gets or creates the named collection, using a local fastembed
// model as the embedding function.
func NewChromemAdapter(dbPath, collectionName string, logger *zap.Logger) (*ChromemAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	embedder, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model: fastembed.BGESmallEN,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed model: %w", err)
	}

	db, err := chromem.NewPersistentDB(dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("opening chromem db at %q: %w", dbPath, err)
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := embedder.Embed([]string{text}, 1)
		if err != nil {
			return nil, fmt.Errorf("embedding text: %w", err)
		}
		if len(vectors) == 0 {
			return nil, fmt.Errorf("fastembed returned no vectors")
		}
		return vectors[0], nil
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("getting or creating collection %q: %w", collectionName, err)
	}

	return &ChromemAdapter{collection: collection, embedder: embedder, logger: logger}, nil
}

// Index adds or updates a document keyed by path in the collection, for the
// docs/knowledge loader to call as it globs source under the watched tree
// (SPEC_FULL.md's fsnotify-driven refresh).
func (a *ChromemAdapter) Index(ctx context.Context, path, content string) error {
	return a.collection.AddDocument(ctx, chromem.Document{ID: path, Content: content})
}

// Search runs a similarity query and adapts chromem-go's Result shape into
// mcp.RetrievedSnippet, the shape the rag_search tool returns to an agent.
func (a *ChromemAdapter) Search(ctx context.Context, query string, limit int) ([]mcp.RetrievedSnippet, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > a.collection.Count() {
		limit = a.collection.Count()
	}
	if limit == 0 {
		return nil, nil
	}

	results, err := a.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	snippets := make([]mcp.RetrievedSnippet, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, mcp.RetrievedSnippet{
			Path:    r.ID,
			Excerpt: r.Content,
			Score:   float64(r.Similarity),
		})
	}
	return snippets, nil
}
