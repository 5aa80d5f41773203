package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxWorkLogEntries bounds how much of the work log a single snapshot
// carries; spec.md's recovery hook is for external persistence, not a
// full audit trail, so only the most recent entries are kept.
const maxWorkLogEntries = 20

// Service persists WorkflowState snapshots to disk as TOML files named
// <ID>.toml, where ID is the caller-supplied Snapshot.ID or, when that is
// empty, a random UUID assigned on Save.
type Service interface {
	// Save writes a Snapshot to SnapshotDir and returns the file path.
	Save(ctx context.Context, snap *Snapshot) (string, error)

	// Load reads a previously saved Snapshot by its ID.
	Load(ctx context.Context, id string) (*Snapshot, error)

	// List returns the IDs of all snapshots currently on disk.
	List(ctx context.Context) ([]string, error)
}

// Config configures the checkpoint service.
type Config struct {
	// SnapshotDir is the directory snapshots are written to.
	SnapshotDir string

	// MaxContentSizeKB caps the serialized snapshot size; a snapshot over
	// this limit has its WorkLog dropped (Truncated is set) rather than
	// being rejected outright, since remit/status/counters are the part a
	// human resuming a run actually needs.
	MaxContentSizeKB int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SnapshotDir:      ".devteam/checkpoints",
		MaxContentSizeKB: 64,
	}
}

type service struct {
	config *Config
	logger *zap.Logger
}

// NewService creates a checkpoint Service rooted at cfg.SnapshotDir.
func NewService(cfg *Config, logger *zap.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.SnapshotDir == "" {
		return nil, fmt.Errorf("snapshot dir is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}
	return &service{config: cfg, logger: logger}, nil
}

func (s *service) Save(ctx context.Context, snap *Snapshot) (string, error) {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now()
	}

	if len(snap.WorkLog) > maxWorkLogEntries {
		snap.WorkLog = snap.WorkLog[len(snap.WorkLog)-maxWorkLogEntries:]
	}

	path := s.pathFor(snap.ID)
	if err := s.writeBounded(path, snap); err != nil {
		return "", err
	}

	s.logger.Debug("wrote checkpoint snapshot",
		zap.String("id", snap.ID),
		zap.String("path", path),
		zap.Bool("truncated", snap.Truncated),
	)
	return path, nil
}

// writeBounded encodes snap to TOML, and if the result exceeds
// MaxContentSizeKB, drops the work log and re-encodes once before writing —
// the one guaranteed-small field set (remit, status, counters) always
// survives.
func (s *service) writeBounded(path string, snap *Snapshot) error {
	data, err := encodeTOML(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	limit := s.config.MaxContentSizeKB * 1024
	if limit > 0 && len(data) > limit && len(snap.WorkLog) > 0 {
		snap.WorkLog = nil
		snap.Truncated = true
		data, err = encodeTOML(snap)
		if err != nil {
			return fmt.Errorf("encoding truncated snapshot: %w", err)
		}
	}

	return os.WriteFile(path, data, 0o644)
}

func (s *service) Load(ctx context.Context, id string) (*Snapshot, error) {
	path := s.pathFor(id)
	var snap Snapshot
	if _, err := toml.DecodeFile(path, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot %q: %w", id, err)
	}
	return &snap, nil
}

func (s *service) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.config.SnapshotDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot dir: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".toml" {
			continue
		}
		ids = append(ids, idFromFileName(e.Name()))
	}
	return ids, nil
}

func (s *service) pathFor(id string) string {
	return filepath.Join(s.config.SnapshotDir, id+".toml")
}

func idFromFileName(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

func encodeTOML(snap *Snapshot) ([]byte, error) {
	var buf []byte
	w := &byteSliceWriter{buf: &buf}
	if err := toml.NewEncoder(w).Encode(snap); err != nil {
		return nil, err
	}
	return buf, nil
}

// byteSliceWriter adapts a []byte accumulator to io.Writer without pulling
// in bytes.Buffer just for this one call site.
type byteSliceWriter struct {
	buf *[]byte
}

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
