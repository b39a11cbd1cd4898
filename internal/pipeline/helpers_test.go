package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/codelod/internal/extract"
	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/internal/storage"
)

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "hashes.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeExtractor serves fixed entities per path; other paths are unsupported.
type fakeExtractor struct {
	mu    sync.Mutex
	files map[string][]models.Entity
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{files: make(map[string][]models.Entity)}
}

// add registers a module plus one function per body under path and returns path.
func (f *fakeExtractor) add(path string, bodies ...string) string {
	ents := []models.Entity{{
		Scope:    models.ScopeModule,
		Name:     filepath.Base(path),
		Source:   fmt.Sprintf("# module %s\n%v", path, bodies),
		Location: models.Location{Path: path, StartLine: 1, EndLine: len(bodies) + 1},
	}}
	for i, body := range bodies {
		ents = append(ents, models.Entity{
			Scope:    models.ScopeFunction,
			Name:     fmt.Sprintf("fn%d", i),
			Source:   body,
			Location: models.Location{Path: path, StartLine: i + 2, EndLine: i + 2},
		})
	}
	f.set(path, ents)
	return path
}

func (f *fakeExtractor) set(path string, ents []models.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = ents
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (string, []models.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ents, ok := f.files[path]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", extract.ErrUnsupported, path)
	}
	out := make([]models.Entity, len(ents))
	copy(out, ents)
	return "python", out, nil
}

// countingGenerator describes entities by name and counts calls per source.
type countingGenerator struct {
	calls    atomic.Int64
	maxDelay time.Duration
	failOn   map[string]bool // entity names that fail

	mu       sync.Mutex
	bySource map[string]int
}

func newCountingGenerator() *countingGenerator {
	return &countingGenerator{bySource: make(map[string]int)}
}

func (g *countingGenerator) Generate(ctx context.Context, e *models.Entity, model string) (string, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.bySource[e.Source]++
	g.mu.Unlock()
	if g.maxDelay > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(g.maxDelay))))
	}
	if g.failOn[e.Name] {
		return "", errors.New("backend unavailable")
	}
	return fmt.Sprintf("Describes %s (%s).", e.QualifiedName(), model), nil
}

func (g *countingGenerator) maxPerSource() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	m := 0
	for _, n := range g.bySource {
		if n > m {
			m = n
		}
	}
	return m
}

// recordingWriter keeps every output and counts writes per file.
type recordingWriter struct {
	mu      sync.Mutex
	writes  map[string]int
	outputs map[string]FileOutput
	err     error
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{writes: make(map[string]int), outputs: make(map[string]FileOutput)}
}

func (w *recordingWriter) Write(ctx context.Context, out FileOutput) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes[out.Path]++
	w.outputs[out.Path] = out
	return w.err
}

func (w *recordingWriter) output(path string) (FileOutput, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outputs[path], w.writes[path]
}
