// Package extract discovers code entities (modules, classes, functions) in source files.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/codelod/internal/models"
)

// ErrUnsupported is returned for files whose language is unknown, disabled, or has no parser.
var ErrUnsupported = errors.New("unsupported file")

// Extractor turns a source file into its entities.
type Extractor interface {
	Extract(ctx context.Context, path string) (language string, entities []models.Entity, err error)
}

// Parser extracts entities for one language. The first entity returned is the module.
type Parser interface {
	Language() string
	Parse(path string, source string) ([]models.Entity, error)
}

// extensions maps a lowercase file extension to its language name.
var extensions = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".go":    "go",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".java":  "java",
	".kt":    "kotlin",
	".swift": "swift",
	".rb":    "ruby",
	".php":   "php",
	".cs":    "c_sharp",
	".scala": "scala",
	".sh":    "bash",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".md":    "markdown",
}

// DetectLanguage returns the language for path's extension, or "" if unknown.
func DetectLanguage(path string) string {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Registry dispatches files to the parser registered for their language.
type Registry struct {
	parsers map[string]Parser
	enabled map[string]bool // nil means every registered language
}

// Option configures a Registry.
type Option func(*Registry)

// WithLanguages restricts extraction to the named languages.
func WithLanguages(langs ...string) Option {
	return func(r *Registry) {
		if len(langs) == 0 {
			return
		}
		r.enabled = make(map[string]bool, len(langs))
		for _, l := range langs {
			r.enabled[strings.ToLower(l)] = true
		}
	}
}

// WithParser registers p, replacing any parser for the same language.
func WithParser(p Parser) Option {
	return func(r *Registry) {
		r.parsers[p.Language()] = p
	}
}

// NewRegistry returns a Registry with the built-in Go and Python parsers.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{GoParser{}, PythonParser{}} {
		r.parsers[p.Language()] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supported reports whether path would be handled by Extract.
func (r *Registry) Supported(path string) bool {
	lang := DetectLanguage(path)
	if lang == "" {
		return false
	}
	if r.enabled != nil && !r.enabled[lang] {
		return false
	}
	_, ok := r.parsers[lang]
	return ok
}

// Languages returns the enabled languages that have a parser, sorted.
func (r *Registry) Languages() []string {
	var out []string
	for lang := range r.parsers {
		if r.enabled == nil || r.enabled[lang] {
			out = append(out, lang)
		}
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and returns its language and entities.
// Unsupported files return an error wrapping ErrUnsupported.
func (r *Registry) Extract(ctx context.Context, path string) (string, []models.Entity, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if !r.Supported(path) {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	lang := DetectLanguage(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read file: %w", err)
	}
	entities, err := r.parsers[lang].Parse(path, decodeSource(content))
	if err != nil {
		return "", nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range entities {
		entities[i].Language = lang
		entities[i].Location.Path = path
	}
	return lang, entities, nil
}

// moduleEntity covers the whole file; its name is the file stem.
func moduleEntity(path, source string) models.Entity {
	base := filepath.Base(path)
	return models.Entity{
		Scope: models.ScopeModule,
		Name:  strings.TrimSuffix(base, filepath.Ext(base)),
		Location: models.Location{
			Path:      path,
			StartLine: 1,
			EndLine:   strings.Count(source, "\n") + 1,
		},
		Source: source,
	}
}
