package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/codelod/internal/cli"
	"github.com/hyperjump/codelod/internal/keyword"
	"github.com/hyperjump/codelod/internal/lodfile"
	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/internal/storage"
)

func (a *app) runRead(args []string) int {
	fs := a.flagSet("read")
	root := fs.String("root", "", "project root")
	scope := fs.String("scope", "", "only print entities of this scope")
	format := fs.String("format", "text", "output format: text, json, or markdown")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	outFormat, err := cli.ParseFormat(*format)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	var sc models.Scope
	if *scope != "" {
		if sc, err = models.ParseScope(*scope); err != nil {
			return a.fail("Error: %v", err)
		}
	}

	paths, _, err := loadProject(*root)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	files, err := lodfile.ReadAll(paths.LodDir)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	items := cli.Items(files, sc)
	if len(items) == 0 && outFormat == cli.OutputText {
		fmt.Fprintln(a.stdout, "No descriptions found. Run 'codelod generate' first.")
		return 0
	}
	if err := cli.WriteDescriptions(a.stdout, items, outFormat); err != nil {
		return a.fail("Error: %v", err)
	}
	return 0
}

func (a *app) runSearch(ctx context.Context, args []string) int {
	fs := a.flagSet("search")
	root := fs.String("root", "", "project root")
	debug := fs.Bool("debug", false, "enable debug logging")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	scope := fs.String("scope", "", "only return entities of this scope")
	language := fs.String("language", "", "only return entities of this language")
	format := fs.String("format", "text", "output format: text or json")
	if err := fs.Parse(searchArgsReorder(args)); err != nil {
		return 2
	}
	query := buildSearchQuery(fs.Args())
	if query == "" {
		return a.fail("Error: search query is required")
	}
	outFormat, err := cli.ParseFormat(*format)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	if *scope != "" {
		sc, err := models.ParseScope(*scope)
		if err != nil {
			return a.fail("Error: %v", err)
		}
		*scope = string(sc)
	}

	c, err := initializeComponents(*root, *debug)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	defer c.Close()

	results, err := c.Index.Search(ctx, query, *limit, &keyword.SearchOptions{
		NameBoost:    3,
		FuzzyEnabled: *fuzzy,
		Scope:        *scope,
		Language:     *language,
	})
	if err != nil {
		return a.fail("Error: %v", err)
	}
	suggestion := ""
	if len(results) == 0 {
		if corrected, ok := keyword.NewSuggester(c.Index).Correct(query); ok {
			suggestion = corrected
		}
	}
	if err := cli.WriteSearchResults(a.stdout, query, results, suggestion, outFormat); err != nil {
		return a.fail("Error: %v", err)
	}
	return 0
}

func (a *app) runPurge(ctx context.Context, args []string) int {
	fs := a.flagSet("purge")
	root := fs.String("root", "", "project root")
	debug := fs.Bool("debug", false, "enable debug logging")
	hash := fs.String("hash", "", "delete the description with this hash")
	unbound := fs.Bool("unbound", false, "delete descriptions no entity refers to")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (*hash == "") == !*unbound {
		return a.fail("Error: exactly one of -hash or -unbound is required")
	}

	c, err := initializeComponents(*root, *debug)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	defer c.Close()

	if *hash != "" {
		if _, err := c.Store.Get(ctx, *hash); errors.Is(err, storage.ErrNotFound) {
			return a.fail("Error: no description with hash %s", *hash)
		}
		if err := c.Store.Delete(ctx, *hash); err != nil {
			return a.fail("Error: %v", err)
		}
		fmt.Fprintf(a.stdout, "Deleted %s\n", *hash)
		return 0
	}
	n, err := c.Store.PurgeUnbound(ctx)
	if err != nil {
		return a.fail("Error: %v", err)
	}
	fmt.Fprintf(a.stdout, "Purged %d unbound descriptions\n", n)
	return 0
}
