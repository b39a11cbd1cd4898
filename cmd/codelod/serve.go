package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/codelod/internal/keyword"
	"github.com/hyperjump/codelod/internal/pipeline"
	"github.com/hyperjump/codelod/internal/server"
	"github.com/hyperjump/codelod/internal/watcher"
)

// startWatcher watches the project and applies settled changes through p. The
// returned function stops watching and waits for the change being applied.
func startWatcher(ctx context.Context, c *Components, p *pipeline.Pipeline) (func(), error) {
	syncer := watcher.NewSyncer(p, c.Store, c.Index, c.Paths.Root, c.Paths.LodDir, c.Logger)
	w := watcher.NewWatcher(c.Paths.Root, c.Keep, syncer.Changed, syncer.Removed,
		watcher.WithLogger(c.Logger),
		watcher.WithDebounce(c.Config.Watch.Debounce),
	)
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	return func() {
		w.Stop()
		syncer.Close()
	}, nil
}

func (a *app) runWatch(ctx context.Context, args []string) int {
	fs := a.flagSet("watch")
	root := fs.String("root", "", "project root")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	c, err := initializeComponents(*root, *debug)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	defer c.Close()

	p, err := c.NewPipeline(a.getenv, nil)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	stop, err := startWatcher(ctx, c, p)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	fmt.Fprintf(a.stdout, "Watching %s (Ctrl+C to stop)\n", c.Paths.Root)
	<-ctx.Done()
	c.Logger.Info("Shutting down...")
	stop()
	return 0
}

func (a *app) runServe(ctx context.Context, args []string) int {
	fs := a.flagSet("serve")
	root := fs.String("root", "", "project root")
	debug := fs.Bool("debug", false, "enable debug logging")
	host := fs.String("host", "", "listen host (default from config)")
	port := fs.Int("port", 0, "listen port (default from config)")
	watch := fs.Bool("watch", false, "also watch the project (default: auto_update from config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	c, err := initializeComponents(*root, *debug)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	defer c.Close()

	cfg := c.Config.Server
	if *host != "" {
		cfg.Host = *host
	}
	if *port > 0 {
		cfg.Port = *port
	}

	p, err := c.NewPipeline(a.getenv, nil)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	if *watch || c.Config.AutoUpdate {
		stop, err := startWatcher(ctx, c, p)
		if err != nil {
			return a.fail("Error: %v", err)
		}
		defer stop()
	}

	srv := server.NewServer(c.Store, p, c.Paths, &cfg, c.Logger,
		server.WithSearch(c.Index, keyword.NewSuggester(c.Index)),
		server.WithFileFilter(c.Keep),
	)
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.Logger.Error("Server failed", zap.Error(err))
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	c.Logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		c.Logger.Warn("Shutdown failed", zap.Error(err))
	}
	return 0
}
