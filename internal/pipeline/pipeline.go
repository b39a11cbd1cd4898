// Package pipeline discovers code entities, decides what needs describing, generates
// descriptions in parallel, and writes each file's output once all its entities are done.
package pipeline

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/codelod/internal/extract"
	"github.com/hyperjump/codelod/internal/generator"
	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/internal/progress"
	"github.com/hyperjump/codelod/internal/storage"
)

// DefaultMaxParallelism is the size of each pool when none is configured.
const DefaultMaxParallelism = 8

// Entry is one described entity in a file's output.
type Entry struct {
	Entity      models.Entity
	Description string
	Generated   bool
}

// FileOutput is everything produced for one source file in a run.
type FileOutput struct {
	Path     string // absolute source path
	KeyPath  string // path relative to the project root when known
	Language string
	Module   *Entry  // nil when the module produced no description
	Entries  []Entry // non-module entities, ordered by start line then name
}

// Writer persists a file's output. It is called at most once per file per run and
// must replace any previous output for the file atomically.
type Writer interface {
	Write(ctx context.Context, out FileOutput) error
}

// Stats summarizes a run.
type Stats struct {
	Generated    int `json:"generated"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	FilesWritten int `json:"files_written"`
}

// Pipeline runs scanners and generation workers joined by an unbounded queue.
type Pipeline struct {
	extractor      extract.Extractor
	store          storage.Storage
	gen            generator.Generator
	writers        []Writer
	resolver       ModelResolver
	observer       progress.Observer
	maxParallelism int
	root           string
	forceScopes    []models.Scope
	logger         *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Each run adds a run_id field.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithExtractor replaces the default extract.Registry.
func WithExtractor(e extract.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithWriter adds a writer. Writers run in the order they were added.
func WithWriter(w Writer) Option {
	return func(p *Pipeline) { p.writers = append(p.writers, w) }
}

// WithModelResolver sets how a scope maps to a model name.
func WithModelResolver(r ModelResolver) Option {
	return func(p *Pipeline) { p.resolver = r }
}

// WithProgress reports counters to observer while a run is active.
func WithProgress(observer progress.Observer) Option {
	return func(p *Pipeline) { p.observer = observer }
}

// WithMaxParallelism sets the size of both the scanner and the worker pool.
func WithMaxParallelism(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxParallelism = n
		}
	}
}

// WithForceScopes limits what a forced run regenerates to entities of these scopes.
// Entities of other scopes follow the normal cache rules.
func WithForceScopes(scopes ...models.Scope) Option {
	return func(p *Pipeline) { p.forceScopes = scopes }
}

// WithRoot sets the project root that binding keys and output paths are relative to.
func WithRoot(root string) Option {
	return func(p *Pipeline) { p.root = root }
}

// New returns a pipeline over store and gen.
func New(store storage.Storage, gen generator.Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:          store,
		gen:            gen,
		maxParallelism: DefaultMaxParallelism,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.extractor == nil {
		p.extractor = extract.NewRegistry()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// RunPipeline runs one pipeline over files and returns how many descriptions were
// generated and how many entities reused an existing description.
func RunPipeline(ctx context.Context, files []string, store storage.Storage, gen generator.Generator, force bool, opts ...Option) (generated, skipped int, err error) {
	stats, err := New(store, gen, opts...).Run(ctx, files, force)
	return stats.Generated, stats.Skipped, err
}

// run holds the state of a single Run call.
type run struct {
	logger   *zap.Logger
	scanner  *Scanner
	queue    *queue[models.WorkItem]
	tracker  *tracker
	progress *progress.Reporter
	flights  *flights
	force    bool

	generated, skipped, failed, written atomic.Int64

	errMu sync.Mutex
	err   error
}

func (r *run) addErr(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	r.err = multierr.Append(r.err, err)
	r.errMu.Unlock()
}

// Run processes files. It never stops early on per-entity failures: scan errors are
// logged, while store and writer errors are aggregated into the returned error.
// Stats are complete even when an error is returned.
func (p *Pipeline) Run(ctx context.Context, files []string, force bool) (Stats, error) {
	files = uniqueAbs(files)
	logger := p.logger.With(zap.String("run_id", uuid.NewString()))
	r := &run{
		logger:   logger,
		scanner:  NewScanner(p.extractor, p.store, p.resolver, p.root, logger),
		queue:    newQueue[models.WorkItem](),
		tracker:  newTracker(),
		flights:  newFlights(),
		force:    force,
		progress: progress.NewReporter(len(files), p.maxParallelism, p.observer),
	}
	r.scanner.LimitForce(p.forceScopes...)
	logger.Debug("pipeline started", zap.Int("files", len(files)), zap.Bool("force", force), zap.Int("parallelism", p.maxParallelism))

	var workers sync.WaitGroup
	for i := 0; i < p.maxParallelism; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for {
				item, ok := r.queue.Pop()
				if !ok {
					return
				}
				p.handle(ctx, r, item)
			}
		}()
	}

	var scanners errgroup.Group
	scanners.SetLimit(p.maxParallelism)
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		file := file
		scanners.Go(func() error {
			p.scanFile(ctx, r, file)
			return nil
		})
	}
	_ = scanners.Wait()
	r.queue.Close()
	workers.Wait()
	r.tracker.close()
	r.progress.Close()

	stats := Stats{
		Generated:    int(r.generated.Load()),
		Skipped:      int(r.skipped.Load()),
		Failed:       int(r.failed.Load()),
		FilesWritten: int(r.written.Load()),
	}
	logger.Debug("pipeline finished",
		zap.Int("generated", stats.Generated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("files_written", stats.FilesWritten),
	)
	return stats, r.err
}

func (p *Pipeline) scanFile(ctx context.Context, r *run, file string) {
	r.progress.ScannerBusy()
	defer func() {
		r.progress.ScannerIdle()
		r.progress.FileScanned()
	}()
	if ctx.Err() != nil {
		return
	}

	items, lang, err := r.scanner.Scan(ctx, file, r.force)
	if err != nil {
		r.logger.Warn("scan failed", zap.String("path", file), zap.Error(err))
		return
	}
	if len(items) == 0 {
		return
	}

	queued := 0
	for _, it := range items {
		if it.NeedsGeneration {
			queued++
		}
	}
	r.tracker.register(items[0].FilePath, len(items))
	r.progress.Discovered(len(items), queued)
	r.logger.Debug("file scanned",
		zap.String("path", items[0].FilePath),
		zap.String("language", lang),
		zap.Int("entities", len(items)),
		zap.Int("to_generate", queued),
	)
	for _, it := range items {
		r.queue.Push(it)
	}
}

func (p *Pipeline) handle(ctx context.Context, r *run, item models.WorkItem) {
	r.progress.WorkerBusy()
	result, err := p.process(ctx, r, item)
	r.progress.WorkerIdle()
	r.addErr(err)

	switch {
	case result.Err != nil:
		r.failed.Add(1)
		r.logger.Warn("entity dropped",
			zap.String("path", item.FilePath),
			zap.String("entity", item.Entity.QualifiedName()),
			zap.Error(result.Err),
		)
	case result.WasGenerated:
		r.generated.Add(1)
		r.progress.Generated()
	default:
		r.skipped.Add(1)
	}

	batch, complete := r.tracker.submit(result)
	if !complete {
		return
	}
	p.write(ctx, r, item, batch)
}

// write is called by exactly one worker per file.
func (p *Pipeline) write(ctx context.Context, r *run, item models.WorkItem, batch []models.GenerationResult) {
	out, ok := buildOutput(item.FilePath, r.scanner.KeyPath(item.FilePath), item.Language, batch)
	if !ok {
		return
	}
	var failed bool
	for _, w := range p.writers {
		if err := w.Write(ctx, out); err != nil {
			failed = true
			r.logger.Error("write failed", zap.String("path", out.Path), zap.Error(err))
			r.addErr(err)
		}
	}
	if !failed {
		r.written.Add(1)
		r.progress.FileWritten()
	}
}

// buildOutput assembles a file's output. ok is false when nothing was described.
func buildOutput(path, keyPath, lang string, batch []models.GenerationResult) (FileOutput, bool) {
	out := FileOutput{Path: path, KeyPath: keyPath, Language: lang}
	for _, res := range batch {
		if res.Err != nil || res.Description == nil {
			continue
		}
		e := Entry{Entity: res.Entity, Description: *res.Description, Generated: res.WasGenerated}
		if res.Entity.Scope == models.ScopeModule {
			out.Module = &e
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	sort.SliceStable(out.Entries, func(i, j int) bool {
		a, b := out.Entries[i].Entity, out.Entries[j].Entity
		if a.Location.StartLine != b.Location.StartLine {
			return a.Location.StartLine < b.Location.StartLine
		}
		return a.QualifiedName() < b.QualifiedName()
	})
	return out, out.Module != nil || len(out.Entries) > 0
}

// uniqueAbs cleans, absolutizes, and de-duplicates paths, keeping first-seen order.
func uniqueAbs(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = filepath.Clean(f)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}
