package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hyperjump/codelod/internal/cli"
	"github.com/hyperjump/codelod/internal/config"
	"github.com/hyperjump/codelod/internal/extract"
	"github.com/hyperjump/codelod/internal/generator"
	"github.com/hyperjump/codelod/internal/keyword"
	"github.com/hyperjump/codelod/internal/lodfile"
	"github.com/hyperjump/codelod/internal/pipeline"
	"github.com/hyperjump/codelod/internal/progress"
	"github.com/hyperjump/codelod/internal/storage"
	"github.com/hyperjump/codelod/pkg/utils"
)

// Components holds everything a command needs for one project.
type Components struct {
	Config   *config.Config
	Paths    config.Paths
	Logger   *zap.Logger
	Store    *storage.SQLiteStorage
	Registry *extract.Registry
	Index    *keyword.BleveIndex
}

// Close releases the store and the search index.
func (c *Components) Close() error {
	var err error
	if c.Index != nil {
		err = multierr.Append(err, c.Index.Close())
	}
	if c.Store != nil {
		err = multierr.Append(err, c.Store.Close())
	}
	_ = c.Logger.Sync()
	return err
}

// loadProject finds the project from dir and loads its configuration.
func loadProject(dir string) (config.Paths, *config.Config, error) {
	root, err := projectRoot(dir)
	if err != nil {
		return config.Paths{}, nil, err
	}
	paths := config.NewPaths(root)
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return config.Paths{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Paths{}, nil, fmt.Errorf("invalid config %s: %w", paths.ConfigFile, err)
	}
	return paths, cfg, nil
}

// initializeComponents opens the project found from dir.
func initializeComponents(dir string, debug bool) (*Components, error) {
	paths, cfg, err := loadProject(dir)
	if err != nil {
		return nil, err
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("root", paths.Root),
		zap.String("provider", cfg.Provider),
		zap.Strings("languages", cfg.Languages),
	)

	store, err := storage.NewSQLiteStorage(paths.HashDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	index, err := keyword.NewBleveIndex(paths.SearchIndex, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize search index: %w", err)
	}
	return &Components{
		Config:   cfg,
		Paths:    paths,
		Logger:   logger,
		Store:    store,
		Registry: extract.NewRegistry(extract.WithLanguages(cfg.Languages...)),
		Index:    index,
	}, nil
}

// Keep reports whether path is a source file of an enabled language.
func (c *Components) Keep(path string) bool {
	return c.Registry.Supported(path)
}

// NewPipeline builds the generation pipeline. API keys are read through getenv.
// progressOut, when set, receives the live status line.
func (c *Components) NewPipeline(getenv func(string) string, progressOut io.Writer, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	gen, err := generator.New(c.Config.Provider, c.Config.GeneratorConfig(getenv), generator.WithLogger(c.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	base := []pipeline.Option{
		pipeline.WithRoot(c.Paths.Root),
		pipeline.WithExtractor(c.Registry),
		pipeline.WithWriter(lodfile.NewWriter(c.Paths.Root, c.Paths.LodDir)),
		pipeline.WithWriter(c.Index),
		pipeline.WithModelResolver(c.Config),
		pipeline.WithMaxParallelism(c.Config.MaxParallelism),
		pipeline.WithLogger(c.Logger),
	}
	if progressOut != nil {
		base = append(base, pipeline.WithProgress(progress.TerminalObserver(progressOut)))
	}
	return pipeline.New(c.Store, gen, append(base, opts...)...), nil
}

// Check scans files without generating anything and reports which entities have no
// fresh description: new entities, changed source, and stale records alike.
func (c *Components) Check(ctx context.Context, files []string) (cli.Status, error) {
	scanner := pipeline.NewScanner(c.Registry, c.Store, nil, c.Paths.Root, c.Logger)
	var st cli.Status
	for _, f := range files {
		items, _, err := scanner.Scan(ctx, f, false)
		if err != nil {
			return st, fmt.Errorf("check %s: %w", f, err)
		}
		for _, it := range items {
			st.Total++
			if !it.NeedsGeneration && !it.Revert {
				st.Fresh++
				continue
			}
			st.Stale++
			st.Items = append(st.Items, cli.DescriptionItem{
				Path:  scanner.KeyPath(it.FilePath),
				Scope: it.Entity.Scope,
				Name:  it.Entity.QualifiedName(),
				Hash:  it.Entity.Hash,
				Stale: true,
			})
		}
	}
	return st, nil
}
