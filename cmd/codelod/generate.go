package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/codelod/internal/cli"
	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/internal/pipeline"
)

func (a *app) runGenerate(ctx context.Context, args []string) int {
	fs := a.flagSet("generate")
	root := fs.String("root", "", "project root")
	debug := fs.Bool("debug", false, "enable debug logging")
	force := fs.Bool("force", false, "regenerate descriptions that are already fresh")
	scope := fs.String("scope", "", "with -force, only regenerate entities of this scope")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var opts []pipeline.Option
	if *scope != "" {
		sc, err := models.ParseScope(*scope)
		if err != nil {
			return a.fail("Error: %v", err)
		}
		opts = append(opts, pipeline.WithForceScopes(sc))
	}

	c, err := initializeComponents(*root, *debug)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	defer c.Close()

	stats, err := a.generate(ctx, c, targetPaths(c.Paths.Root, fs.Args()), *force, opts...)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	fmt.Fprintf(a.stdout, "Generated %d descriptions\n", stats.Generated)
	if stats.Skipped > 0 {
		fmt.Fprintf(a.stdout, "Skipped %d existing descriptions\n", stats.Skipped)
	}
	if stats.Failed > 0 {
		fmt.Fprintf(a.stdout, "Failed %d descriptions (see log)\n", stats.Failed)
		return 1
	}
	return 0
}

// generate runs the pipeline over every supported file under targets.
func (a *app) generate(ctx context.Context, c *Components, targets []string, force bool, opts ...pipeline.Option) (pipeline.Stats, error) {
	files, err := pipeline.CollectFiles(targets, c.Keep)
	if err != nil {
		return pipeline.Stats{}, err
	}
	p, err := c.NewPipeline(a.getenv, a.stderr, opts...)
	if err != nil {
		return pipeline.Stats{}, err
	}
	stats, err := p.Run(ctx, files, force)
	if len(files) > 0 {
		// Finish the progress line.
		fmt.Fprintln(a.stderr)
	}
	return stats, err
}

func (a *app) runUpdate(ctx context.Context, args []string) int {
	fs := a.flagSet("update")
	root := fs.String("root", "", "project root")
	debug := fs.Bool("debug", false, "enable debug logging")
	yes := fs.Bool("y", false, "update without confirmation")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	c, err := initializeComponents(*root, *debug)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	defer c.Close()

	targets := targetPaths(c.Paths.Root, fs.Args())
	status, err := a.check(ctx, c, targets)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	if status.Stale == 0 {
		fmt.Fprintln(a.stdout, "No stale descriptions to update")
		return 0
	}
	fmt.Fprintf(a.stdout, "Found %d stale descriptions\n", status.Stale)
	if !*yes && !cli.Confirm(a.stdin, a.stdout, "Update all stale descriptions?") {
		fmt.Fprintln(a.stdout, "Aborted")
		return 1
	}

	stats, err := a.generate(ctx, c, targets, false)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	fmt.Fprintf(a.stdout, "Updated %d descriptions\n", stats.Generated)
	if stats.Failed > 0 {
		fmt.Fprintf(a.stdout, "Failed %d descriptions (see log)\n", stats.Failed)
		return 1
	}
	return 0
}

// check collects the supported files under targets and checks their freshness.
func (a *app) check(ctx context.Context, c *Components, targets []string) (cli.Status, error) {
	files, err := pipeline.CollectFiles(targets, c.Keep)
	if err != nil {
		return cli.Status{}, err
	}
	return c.Check(ctx, files)
}

func (a *app) runStatus(ctx context.Context, args []string) int {
	fs := a.flagSet("status")
	root := fs.String("root", "", "project root")
	debug := fs.Bool("debug", false, "enable debug logging")
	staleOnly := fs.Bool("stale-only", false, "only print the totals")
	format := fs.String("format", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	outFormat, err := cli.ParseFormat(*format)
	if err != nil {
		return a.fail("Error: %v", err)
	}

	c, err := initializeComponents(*root, *debug)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	defer c.Close()

	status, err := a.check(ctx, c, targetPaths(c.Paths.Root, fs.Args()))
	if err != nil {
		return a.fail("Error: %v", err)
	}
	if outFormat == cli.OutputJSON {
		if err := cli.WriteJSON(a.stdout, status); err != nil {
			return a.fail("Error: %v", err)
		}
	} else {
		cli.WriteStatus(a.stdout, status, *staleOnly)
	}
	if status.Stale > 0 {
		return 1
	}
	return 0
}

func (a *app) runValidate(ctx context.Context, args []string) int {
	fs := a.flagSet("validate")
	root := fs.String("root", "", "project root")
	debug := fs.Bool("debug", false, "enable debug logging")
	failOnStale := fs.Bool("fail-on-stale", false, "exit 1 when anything is stale (default from config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	c, err := initializeComponents(*root, *debug)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	defer c.Close()

	status, err := a.check(ctx, c, targetPaths(c.Paths.Root, fs.Args()))
	if err != nil {
		return a.fail("Error: %v", err)
	}
	if status.Stale == 0 {
		fmt.Fprintln(a.stdout, "All descriptions are fresh")
		return 0
	}
	fmt.Fprintf(a.stdout, "Found %d stale descriptions\n", status.Stale)
	if *failOnStale || c.Config.FailOnStale {
		return 1
	}
	return 0
}
