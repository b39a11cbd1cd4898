// Package main is the codelod CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hyperjump/codelod/internal/config"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newApp(os.Stdin, os.Stdout, os.Stderr).run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// app carries the process environment so commands can run inside tests.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr, getenv: os.Getenv}
}

// run dispatches args to a command and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	if len(args) < 1 {
		a.printUsage()
		return 1
	}
	command, rest := args[0], args[1:]
	switch command {
	case "init":
		return a.runInit(rest)
	case "generate":
		return a.runGenerate(ctx, rest)
	case "update":
		return a.runUpdate(ctx, rest)
	case "status":
		return a.runStatus(ctx, rest)
	case "validate":
		return a.runValidate(ctx, rest)
	case "read":
		return a.runRead(rest)
	case "search":
		return a.runSearch(ctx, rest)
	case "purge":
		return a.runPurge(ctx, rest)
	case "clean":
		return a.runClean(rest)
	case "hook":
		return a.runHook(rest)
	case "watch":
		return a.runWatch(ctx, rest)
	case "serve":
		return a.runServe(ctx, rest)
	case "version", "--version", "-v":
		fmt.Fprintf(a.stdout, "codelod version %s\n", version)
		return 0
	case "help", "--help", "-h":
		a.printUsage()
		return 0
	default:
		fmt.Fprintf(a.stderr, "Unknown command: %s\n", command)
		a.printUsage()
		return 1
	}
}

// flagSet returns a flag set that reports parse errors instead of exiting.
func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// fail prints err and returns exit code 1.
func (a *app) fail(format string, args ...interface{}) int {
	fmt.Fprintf(a.stderr, format+"\n", args...)
	return 1
}

// projectRoot returns the root of the project containing dir, or the current directory's.
func projectRoot(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	return config.FindProjectRoot(dir)
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// searchArgsReorder moves flags before the query so `search foo -limit 5` works:
// the flag package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// targetPaths returns the paths named on the command line, or root when there are none.
func targetPaths(root string, args []string) []string {
	if len(args) == 0 {
		return []string{root}
	}
	out := make([]string, 0, len(args))
	for _, p := range args {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out = append(out, p)
	}
	return out
}

func (a *app) printUsage() {
	fmt.Fprintln(a.stdout, `codelod - Level-of-detail descriptions for source code

Usage:
  codelod init [flags]                 Initialize .code-lod in the current directory
  codelod generate [flags] [path...]   Generate descriptions
  codelod update [flags] [path...]     Regenerate stale descriptions
  codelod status [flags]               Show description freshness (exit 1 when stale)
  codelod validate [flags]             Check description freshness
  codelod read [flags]                 Print descriptions from .lod files
  codelod search [flags] <query>       Search descriptions
  codelod purge [flags]                Delete stored descriptions
  codelod clean [flags]                Remove all code-lod data
  codelod hook <install|uninstall>     Manage the git hook
  codelod watch [flags]                Regenerate descriptions as files change
  codelod serve [flags]                Start the HTTP server
  codelod version                      Show version
  codelod help                         Show this help

Common Flags:
  --root string      Project root (default: nearest directory containing .code-lod)
  --debug            Enable debug logging

Init Flags:
  --provider string  anthropic, openai, ollama, or mock (default: detected from API keys)
  --j int            Maximum parallelism (default: 8)
  --language string  Language to describe; repeatable (default: python, go)
  --force            Reinitialize without asking

Generate Flags:
  --force            Regenerate descriptions that are already fresh
  --scope string     With --force, only regenerate entities of this scope

Update Flags:
  --y                Update without confirmation

Status Flags:
  --stale-only       Only print the totals

Validate Flags:
  --fail-on-stale    Exit 1 when anything is stale (default from config)

Read Flags:
  --scope string     project, package, module, class, or function
  --format string    text, json, or markdown (default: text)

Search Flags:
  --limit int        Number of results (default: 10)
  --fuzzy            Enable fuzzy matching for typo tolerance
  --scope string     Only return entities of this scope
  --language string  Only return entities of this language
  --format string    text or json (default: text)

Purge Flags:
  --hash string      Delete the description with this hash
  --unbound          Delete descriptions no entity refers to

Hook Flags:
  --type string      pre-commit or pre-push (default: pre-commit)

Serve Flags:
  --host string      Listen host (default from config)
  --port int         Listen port (default from config)
  --watch            Also watch the project (default: auto_update from config)

Examples:
  codelod init --provider anthropic --language python
  codelod generate src/
  codelod generate --force --scope function
  codelod status
  codelod read --scope class --format markdown
  codelod search "parse invoice"
  codelod hook install --type pre-push`)
}
