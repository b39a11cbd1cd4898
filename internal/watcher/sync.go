package watcher

import (
	"context"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hyperjump/codelod/internal/lodfile"
	"github.com/hyperjump/codelod/internal/pipeline"
	"github.com/hyperjump/codelod/internal/storage"
)

// Runner regenerates descriptions for a set of files.
type Runner interface {
	Run(ctx context.Context, files []string, force bool) (pipeline.Stats, error)
}

// FileIndex drops the search documents of a removed file.
type FileIndex interface {
	DeleteFile(ctx context.Context, path string) error
}

// Syncer applies settled file events to a project: changed files are run through
// the pipeline, removed files lose their bindings, .lod file, and search documents.
// Runs are serialized.
type Syncer struct {
	runner Runner
	store  storage.Storage
	index  FileIndex
	root   string
	lodDir string
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewSyncer returns a syncer for the project at root. index may be nil.
func NewSyncer(runner Runner, store storage.Storage, index FileIndex, root, lodDir string, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{runner: runner, store: store, index: index, root: root, lodDir: lodDir, logger: logger}
}

// Changed regenerates what is stale in path.
func (s *Syncer) Changed(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	stats, err := s.runner.Run(ctx, []string{path}, false)
	if err != nil {
		s.logger.Error("Update failed", zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Info("Updated",
		zap.String("path", path),
		zap.Int("generated", stats.Generated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
}

// Removed forgets a deleted source file.
func (s *Syncer) Removed(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if err := s.remove(ctx, path); err != nil {
		s.logger.Error("Cleanup failed", zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Info("Removed", zap.String("path", path))
}

// Close waits for the event being applied, if any, and drops every later one.
func (s *Syncer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Syncer) remove(ctx context.Context, path string) error {
	key := s.keyPath(path)
	var err error
	err = multierr.Append(err, s.store.UnbindFile(ctx, key))
	err = multierr.Append(err, lodfile.Remove(s.root, s.lodDir, path))
	if s.index != nil {
		err = multierr.Append(err, s.index.DeleteFile(ctx, key))
	}
	return err
}

func (s *Syncer) keyPath(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
