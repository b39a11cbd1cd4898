// Package cli renders command output and manages git hooks for the codelod CLI.
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/codelod/internal/keyword"
	"github.com/hyperjump/codelod/internal/lodfile"
	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputMarkdown is a document meant to be pasted into an LLM prompt.
	OutputMarkdown OutputFormat = "markdown"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON, OutputMarkdown:
		return f, nil
	case "":
		return OutputText, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json, or markdown)", s)
}

// DescriptionItem is one description as printed by `read`.
type DescriptionItem struct {
	Path        string       `json:"path"`
	Scope       models.Scope `json:"scope"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Stale       bool         `json:"stale"`
	Hash        string       `json:"hash,omitempty"`
}

// Items flattens .lod files into description items, keeping only scope when set.
func Items(files []lodfile.File, scope models.Scope) []DescriptionItem {
	items := []DescriptionItem{}
	for _, f := range files {
		for _, e := range f.Entries {
			if scope != "" && e.Scope != scope {
				continue
			}
			items = append(items, DescriptionItem{
				Path:        f.Source,
				Scope:       e.Scope,
				Name:        e.QualifiedName(),
				Description: e.Comment.Description,
				Stale:       e.Comment.Stale,
				Hash:        e.Comment.Hash,
			})
		}
	}
	return items
}

// WriteDescriptions writes items to w in the given format.
func WriteDescriptions(w io.Writer, items []DescriptionItem, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return WriteJSON(w, items)
	case OutputMarkdown:
		path := ""
		for _, it := range items {
			if it.Path != path {
				path = it.Path
				fmt.Fprintf(w, "## %s\n\n", path)
			}
			fmt.Fprintf(w, "- **%s** `%s`: %s\n", it.Scope, it.Name, strings.ReplaceAll(it.Description, "\n", " "))
		}
		return nil
	default:
		for _, it := range items {
			fmt.Fprintf(w, "[%s] %s\n", it.Scope, it.Name)
			for _, line := range strings.Split(it.Description, "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
			fmt.Fprintln(w)
		}
		return nil
	}
}

// Status summarizes description freshness.
type Status struct {
	Total int               `json:"total"`
	Fresh int               `json:"fresh"`
	Stale int               `json:"stale"`
	Items []DescriptionItem `json:"stale_items,omitempty"`
}

// WriteStatus prints one line per stale item (unless summaryOnly) and a totals line.
func WriteStatus(w io.Writer, s Status, summaryOnly bool) {
	if !summaryOnly {
		for _, it := range s.Items {
			fmt.Fprintf(w, "  [STALE] %s: %s (%s)\n", it.Scope, it.Name, it.Path)
		}
	}
	fmt.Fprintf(w, "\nTotal: %d | Fresh: %d | Stale: %d\n", s.Total, s.Fresh, s.Stale)
}

// WriteSearchResults writes search hits to w. suggestion is printed when there are no hits.
func WriteSearchResults(w io.Writer, query string, results []*keyword.Result, suggestion string, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []*keyword.Result{}
		}
		return WriteJSON(w, map[string]interface{}{
			"query":      query,
			"results":    results,
			"suggestion": suggestion,
		})
	}
	if len(results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", query)
		if suggestion != "" {
			fmt.Fprintf(w, "Did you mean: %s\n", suggestion)
		}
		return nil
	}
	fmt.Fprintf(w, "Found %d results for %q\n\n", len(results), query)
	for i, r := range results {
		d := r.Doc
		fmt.Fprintf(w, "%d. [%s] %s  %s:%d  (score %.3f)\n", i+1, d.Scope, d.QualifiedName(), d.Path, d.StartLine, r.Score)
		fmt.Fprintf(w, "   %s\n", utils.Truncate(utils.FirstLine(d.Description), 160))
	}
	return nil
}

// Confirm asks a yes/no question on w and reads the answer from r. Only y/yes is yes.
func Confirm(r io.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(r).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
