// Package watcher keeps .lod files current by watching a project tree with fsnotify.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/codelod/internal/pipeline"
)

const defaultDebounce = 400 * time.Millisecond

// Callback receives an absolute file path. ctx is the context passed to Start.
type Callback func(ctx context.Context, path string)

// Watcher watches a project root recursively and reports settled file changes.
// Every event on a path restarts that path's debounce timer; when it fires the
// file is reported as changed if it still exists and as removed otherwise.
type Watcher struct {
	root     string
	keep     func(path string) bool
	onChange Callback
	onRemove Callback
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	ctx      context.Context
	fsw      *fsnotify.Watcher
	timers   map[string]*time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a path must be quiet before it is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for root. keep filters which files are reported (nil = all).
func NewWatcher(root string, keep func(path string) bool, onChange, onRemove Callback, opts ...Option) *Watcher {
	if keep == nil {
		keep = func(string) bool { return true }
	}
	w := &Watcher{
		root:     filepath.Clean(root),
		keep:     keep,
		onChange: onChange,
		onRemove: onRemove,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addTree(fsw, w.root, w.logger); err != nil {
		_ = fsw.Close()
		return err
	}
	w.fsw = fsw
	w.ctx = ctx
	w.started = true
	w.logger.Debug("Watcher started", zap.String("root", w.root), zap.Duration("debounce", w.debounce))
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if ignored(w.root, path) {
		return
	}
	w.logger.Debug("Watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.handleNewDirectory(fsw, path)
			return
		}
	}
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return
	}
	if !w.keep(path) {
		return
	}
	w.schedule(path)
}

// handleNewDirectory watches a directory that appeared (created or moved in) and
// reports every file already inside it.
func (w *Watcher) handleNewDirectory(fsw *fsnotify.Watcher, dir string) {
	if err := addTree(fsw, dir, w.logger); err != nil {
		w.logger.Warn("Failed to watch new directory", zap.String("path", dir), zap.Error(err))
	}
	files, err := pipeline.CollectFiles([]string{dir}, w.keep)
	if err != nil {
		w.logger.Warn("Failed to list new directory", zap.String("path", dir), zap.Error(err))
	}
	for _, f := range files {
		w.schedule(f)
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	ctx, started := w.ctx, w.started
	w.mu.Unlock()
	if !started {
		return
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if w.onChange != nil {
			w.onChange(ctx, path)
		}
	case errors.Is(err, fs.ErrNotExist):
		if w.onRemove != nil {
			w.onRemove(ctx, path)
		}
	default:
		w.logger.Warn("Failed to stat changed file", zap.String("path", path), zap.Error(err))
	}
}

// addTree watches dir and every directory below it that is not skipped.
func addTree(fsw *fsnotify.Watcher, dir string, logger *zap.Logger) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && pipeline.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return err
		}
		logger.Debug("Watching directory", zap.String("path", path))
		return nil
	})
}

// ignored reports whether path lies outside root or inside a skipped directory.
func ignored(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, dir := range parts[:len(parts)-1] {
		if pipeline.SkipDir(dir) {
			return true
		}
	}
	return false
}

// Pending returns how many paths are waiting for their debounce timer.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}

// Stop stops the watcher and releases resources. Pending changes are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	_ = w.fsw.Close()
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
