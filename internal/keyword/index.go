// Package keyword indexes generated descriptions in Bleve so they can be searched.
package keyword

import (
	"fmt"

	"github.com/hyperjump/codelod/internal/pipeline"
)

// Document is one indexed description. Path is the project-relative source path.
type Document struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Parent      string `json:"parent"`
	Scope       string `json:"scope"`
	Language    string `json:"language"`
	Hash        string `json:"hash"`
	Description string `json:"description"`
	StartLine   int    `json:"start_line"`
}

// QualifiedName returns Parent.Name for nested entities and Name otherwise.
func (d *Document) QualifiedName() string {
	if d.Parent == "" {
		return d.Name
	}
	return d.Parent + "." + d.Name
}

// ID is unique per entity within a project.
func (d *Document) ID() string {
	return fmt.Sprintf("%s::%s:%s", d.Path, d.Scope, d.QualifiedName())
}

// Documents converts a pipeline output into index documents, module first.
func Documents(out pipeline.FileOutput) []*Document {
	path := out.KeyPath
	if path == "" {
		path = out.Path
	}
	entries := out.Entries
	if out.Module != nil {
		entries = append([]pipeline.Entry{*out.Module}, entries...)
	}
	docs := make([]*Document, 0, len(entries))
	for _, e := range entries {
		if e.Description == "" {
			continue
		}
		docs = append(docs, &Document{
			Path:        path,
			Name:        e.Entity.Name,
			Parent:      e.Entity.ParentName,
			Scope:       string(e.Entity.Scope),
			Language:    e.Entity.Language,
			Hash:        e.Entity.Hash,
			Description: e.Description,
			StartLine:   e.Entity.Location.StartLine,
		})
	}
	return docs
}

// SearchOptions are optional parameters for Search. Nil means use defaults.
type SearchOptions struct {
	// NameBoost multiplies the score of matches in the entity name. Values <= 1 disable it.
	NameBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Default 2.
	Fuzziness int
	// Scope and Language restrict hits to exact values when set.
	Scope    string
	Language string
}

// Result is a single search hit.
type Result struct {
	ID    string    `json:"id"`
	Score float64   `json:"score"`
	Doc   *Document `json:"document"`
}

// TermDictionary exposes indexed terms with their document frequencies.
type TermDictionary interface {
	Terms() (map[string]int, error)
}
