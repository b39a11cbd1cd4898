package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/codelod/internal/cli"
	"github.com/hyperjump/codelod/internal/config"
	"github.com/hyperjump/codelod/internal/generator"
)

func (a *app) runInit(args []string) int {
	fs := a.flagSet("init")
	root := fs.String("root", "", "directory to initialize (default: current directory)")
	provider := fs.String("provider", "", "anthropic, openai, ollama, or mock (default: detected from API keys)")
	jobs := fs.Int("j", 0, "maximum parallelism")
	force := fs.Bool("force", false, "reinitialize without asking")
	var languages stringList
	fs.Var(&languages, "language", "language to describe; repeatable")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dir := *root
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	paths := config.NewPaths(dir)

	if _, err := os.Stat(paths.Dir); err == nil && !*force {
		if !cli.Confirm(a.stdin, a.stdout, "code-lod is already initialized here. Reinitialize?") {
			fmt.Fprintln(a.stdout, "Aborted")
			return 1
		}
	}

	cfg := config.Default()
	cfg.Provider = strings.ToLower(*provider)
	if cfg.Provider == "" {
		cfg.Provider = generator.DetectProvider(a.getenv)
	}
	if *jobs > 0 {
		cfg.MaxParallelism = *jobs
	}
	if len(languages) > 0 {
		cfg.Languages = languages
	}
	if err := cfg.Validate(); err != nil {
		return a.fail("Error: %v", err)
	}

	if err := os.MkdirAll(paths.LodDir, 0755); err != nil {
		return a.fail("Error: failed to create %s: %v", paths.LodDir, err)
	}
	if err := config.Save(paths.ConfigFile, cfg); err != nil {
		return a.fail("Error: %v", err)
	}

	fmt.Fprintf(a.stdout, "Initialized code-lod in %s\n", paths.Root)
	fmt.Fprintf(a.stdout, "  Config: %s\n", paths.ConfigFile)
	fmt.Fprintf(a.stdout, "  LOD files: %s\n", paths.LodDir)
	fmt.Fprintf(a.stdout, "  Provider: %s\n", cfg.Provider)
	return 0
}

func (a *app) runClean(args []string) int {
	fs := a.flagSet("clean")
	root := fs.String("root", "", "project root")
	force := fs.Bool("force", false, "remove without asking")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dir, err := projectRoot(*root)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	paths := config.NewPaths(dir)
	if !*force && !cli.Confirm(a.stdin, a.stdout, fmt.Sprintf("Remove %s and every description in it?", paths.Dir)) {
		fmt.Fprintln(a.stdout, "Aborted")
		return 1
	}
	if err := os.RemoveAll(paths.Dir); err != nil {
		return a.fail("Error: %v", err)
	}
	fmt.Fprintln(a.stdout, "Cleaned code-lod data")
	return 0
}

func (a *app) runHook(args []string) int {
	if len(args) < 1 || (args[0] != "install" && args[0] != "uninstall") {
		return a.fail("Usage: codelod hook <install|uninstall> [-type pre-commit|pre-push]")
	}
	action := args[0]
	fs := a.flagSet("hook " + action)
	root := fs.String("root", "", "project root")
	hookType := fs.String("type", cli.HookPreCommit, "hook type: pre-commit or pre-push")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	dir, err := projectRoot(*root)
	if err != nil {
		return a.fail("Error: %v", err)
	}

	if action == "install" {
		path, err := cli.InstallHook(dir, *hookType)
		if errors.Is(err, cli.ErrNotGitRepo) {
			return a.fail("Error: %s is not a git repository", dir)
		}
		if err != nil {
			return a.fail("Error: %v", err)
		}
		fmt.Fprintf(a.stdout, "Installed %s hook at %s\n", *hookType, path)
		return 0
	}

	removed, err := cli.UninstallHook(dir, *hookType)
	if errors.Is(err, cli.ErrNotGitRepo) {
		return a.fail("Error: %s is not a git repository", dir)
	}
	if err != nil {
		return a.fail("Error: %v", err)
	}
	if removed {
		fmt.Fprintf(a.stdout, "Removed %s hook\n", *hookType)
	} else {
		fmt.Fprintf(a.stdout, "No codelod %s hook installed\n", *hookType)
	}
	return 0
}
