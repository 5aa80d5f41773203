package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// sections are the four fixed subdirectories spec.md §6 names under
// docs/knowledge/.
var sections = []string{"conventions", "design", "lessons", "domain"}

// Snippet is one markdown file's content, tagged with the section it was
// found under.
type Snippet struct {
	Section string
	Path    string
	Content string
}

// Indexer is the subset of a retrieval adapter the loader pushes snippets
// into; both retrieval.ChromemAdapter and retrieval.QdrantAdapter-style
// adapters that choose to support local indexing can satisfy it.
type Indexer interface {
	Index(ctx context.Context, path, content string) error
}

// Loader globs docs/knowledge/{conventions,design,lessons,domain} under
// root and hands matching files to an Indexer.
type Loader struct {
	root   string
	logger *zap.Logger
}

// NewLoader builds a Loader rooted at root (typically "docs/knowledge"
// under the workflow's repo_root).
func NewLoader(root string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{root: root, logger: logger}
}

// Load reads every .md file directly inside each of the four section
// directories; subdirectories are not descended into. A missing section
// directory is not an error — a repo need not populate all four.
func (l *Loader) Load() ([]Snippet, error) {
	var snippets []Snippet

	for _, section := range sections {
		dir := filepath.Join(l.root, section)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			content, err := os.ReadFile(path)
			if err != nil {
				l.logger.Warn("knowledge: skipping unreadable file", zap.String("path", path), zap.Error(err))
				continue
			}
			snippets = append(snippets, Snippet{Section: section, Path: path, Content: string(content)})
		}
	}

	return snippets, nil
}

// Refresh reloads the corpus and pushes every snippet into idx, keyed by
// its path so a re-index of an unchanged file is a harmless overwrite.
func (l *Loader) Refresh(ctx context.Context, idx Indexer) (int, error) {
	snippets, err := l.Load()
	if err != nil {
		return 0, err
	}
	for _, s := range snippets {
		if err := idx.Index(ctx, s.Path, s.Content); err != nil {
			return 0, fmt.Errorf("indexing %q: %w", s.Path, err)
		}
	}
	return len(snippets), nil
}
