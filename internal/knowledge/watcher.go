package knowledge

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the four docs/knowledge section directories (not their
// subdirectories) and .rag_index/ for changes and calls
// Refresh on the loader whenever something changes, debounced by the
// caller's own Refresh cost (a full re-glob is cheap compared to an LLM
// call, so no separate debounce timer is used).
type Watcher struct {
	loader    *Loader
	indexDir  string
	fsw       *fsnotify.Watcher
	logger    *zap.Logger
}

// NewWatcher builds a Watcher over the loader's docs/knowledge root plus
// indexDir (typically ".rag_index").
func NewWatcher(loader *Loader, indexDir string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{loader: loader, indexDir: indexDir, fsw: fsw, logger: logger}

	for _, section := range sections {
		dir := filepath.Join(loader.root, section)
		if err := fsw.Add(dir); err != nil {
			logger.Debug("knowledge: not watching missing section", zap.String("dir", dir), zap.Error(err))
		}
	}
	if err := fsw.Add(indexDir); err != nil {
		logger.Debug("knowledge: not watching missing index dir", zap.String("dir", indexDir), zap.Error(err))
	}

	return w, nil
}

// Run blocks, refreshing idx each time a watched path changes, until ctx is
// cancelled or the watcher errors.
func (w *Watcher) Run(ctx context.Context, idx Indexer) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			n, err := w.loader.Refresh(ctx, idx)
			if err != nil {
				w.logger.Warn("knowledge: refresh failed", zap.Error(err))
				continue
			}
			w.logger.Info("knowledge: refreshed index", zap.Int("snippets", n), zap.String("trigger", event.Name))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("knowledge: watcher error", zap.Error(err))
		}
	}
}
