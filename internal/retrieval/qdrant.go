package retrieval

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devteam/internal/mcp"
)

// Embedder produces a query vector for a text; the qdrant adapter takes an
// embedder as a dependency rather than importing fastembed-go itself, since
// a production qdrant deployment typically pairs with a remote embedding
// service, unlike the local-only chromem-go adapter.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QdrantAdapter is the production retrieval adapter backed by a qdrant
// cluster (SPEC_FULL.md §3).
type QdrantAdapter struct {
	client         *qdrant.Client
	collectionName string
	embedder       Embedder
	logger         *zap.Logger
}

// NewQdrantAdapter dials a qdrant instance at host:port.
func NewQdrantAdapter(host string, port int, collectionName string, embedder Embedder, logger *zap.Logger) (*QdrantAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", host, port, err)
	}
	return &QdrantAdapter{client: client, collectionName: collectionName, embedder: embedder, logger: logger}, nil
}

// Search embeds query and runs a top-k similarity search against the
// configured collection, adapting the response into mcp.RetrievedSnippet.
func (a *QdrantAdapter) Search(ctx context.Context, query string, limit int) ([]mcp.RetrievedSnippet, error) {
	if limit <= 0 {
		limit = 5
	}

	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	limit64 := uint64(limit)
	points, err := a.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: a.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit64,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying qdrant collection %q: %w", a.collectionName, err)
	}

	snippets := make([]mcp.RetrievedSnippet, 0, len(points))
	for _, p := range points {
		path, _ := p.GetPayload()["path"].GetStringValue(), struct{}{}
		excerpt, _ := p.GetPayload()["excerpt"].GetStringValue(), struct{}{}
		snippets = append(snippets, mcp.RetrievedSnippet{
			Path:    path,
			Excerpt: excerpt,
			Score:   float64(p.GetScore()),
		})
	}
	return snippets, nil
}
