package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/codelod/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func find(entities []models.Entity, scope models.Scope, qualified string) *models.Entity {
	for i := range entities {
		if entities[i].Scope == scope && entities[i].QualifiedName() == qualified {
			return &entities[i]
		}
	}
	return nil
}

func TestDetectLanguage(t *testing.T) {
	tests := map[string]string{
		"a.py":        "python",
		"b/c.GO":      "go",
		"x.tsx":       "typescript",
		"lib.hpp":     "cpp",
		"Makefile":    "",
		"notes.txt":   "",
		"deploy.yml":  "yaml",
		"Program.cs":  "c_sharp",
		"script.sh":   "bash",
		"config.toml": "toml",
	}
	for path, want := range tests {
		if got := DetectLanguage(path); got != want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRegistry_Unsupported(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cases := []string{
		writeFile(t, dir, "notes.txt", "hello"),
		writeFile(t, dir, "main.rs", "fn main() {}"), // known language, no parser
	}
	r := NewRegistry()
	for _, path := range cases {
		if _, _, err := r.Extract(ctx, path); !errors.Is(err, ErrUnsupported) {
			t.Errorf("%s: expected ErrUnsupported, got %v", path, err)
		}
	}

	goFile := writeFile(t, dir, "a.go", "package a\n")
	onlyPython := NewRegistry(WithLanguages("python"))
	if _, _, err := onlyPython.Extract(ctx, goFile); !errors.Is(err, ErrUnsupported) {
		t.Errorf("disabled language: expected ErrUnsupported, got %v", err)
	}
	if got := onlyPython.Languages(); len(got) != 1 || got[0] != "python" {
		t.Errorf("Languages() = %v", got)
	}
}

func TestRegistry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := writeFile(t, t.TempDir(), "a.py", "x = 1\n")
	if _, _, err := NewRegistry().Extract(ctx, path); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

const pySample = `"""Calculator module."""
import math


def add(a, b):
    # sum two values
    return a + b


@dataclass
class Calc:
    """A calculator.

def not_a_function():
    """

    def mul(self, a, b):
        return a * b

    async def fetch(self,
            url):
        def helper():
            return 1
        return helper()

    class Inner:
        def go(self): pass


def tail(): return 0
`

func TestPythonParser(t *testing.T) {
	path := writeFile(t, t.TempDir(), "calc.py", pySample)
	lang, entities, err := NewRegistry().Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if lang != "python" {
		t.Errorf("language = %q", lang)
	}

	mod := entities[0]
	if mod.Scope != models.ScopeModule || mod.Name != "calc" || mod.Source != pySample {
		t.Errorf("module entity = %+v", mod)
	}
	if mod.Location.StartLine != 1 || mod.Location.EndLine != strings.Count(pySample, "\n")+1 {
		t.Errorf("module location = %+v", mod.Location)
	}

	tests := []struct {
		scope      models.Scope
		name       string
		start, end int
		contains   string
	}{
		{models.ScopeFunction, "add", 5, 7, "return a + b"},
		{models.ScopeClass, "Calc", 10, 27, "@dataclass"},
		{models.ScopeFunction, "Calc.mul", 17, 18, "return a * b"},
		{models.ScopeFunction, "Calc.fetch", 20, 24, "return helper()"},
		{models.ScopeFunction, "Calc.helper", 22, 23, "return 1"},
		{models.ScopeClass, "Calc.Inner", 26, 27, "def go"},
		{models.ScopeFunction, "Inner.go", 27, 27, "pass"},
		{models.ScopeFunction, "tail", 30, 30, "return 0"},
	}
	for _, tt := range tests {
		e := find(entities, tt.scope, tt.name)
		if e == nil {
			t.Errorf("missing %s %s", tt.scope, tt.name)
			continue
		}
		if e.Location.StartLine != tt.start || e.Location.EndLine != tt.end {
			t.Errorf("%s: lines %d-%d, want %d-%d", tt.name, e.Location.StartLine, e.Location.EndLine, tt.start, tt.end)
		}
		if !strings.Contains(e.Source, tt.contains) {
			t.Errorf("%s: source %q does not contain %q", tt.name, e.Source, tt.contains)
		}
		if e.Language != "python" || e.Location.Path != path {
			t.Errorf("%s: language/path not set: %+v", tt.name, e)
		}
	}

	if find(entities, models.ScopeFunction, "not_a_function") != nil ||
		find(entities, models.ScopeFunction, "Calc.not_a_function") != nil {
		t.Error("definition inside a docstring must be ignored")
	}
	if len(entities) != len(tests)+1 {
		t.Errorf("got %d entities, want %d", len(entities), len(tests)+1)
	}
}

const goSample = `// Package shapes has shapes.
package shapes

import "math"

// Circle is round.
type Circle struct {
	R float64
}

type (
	Point struct{ X, Y int }
	Set[T comparable] map[T]struct{}
)

// Area of the circle.
func (c *Circle) Area() float64 {
	return math.Pi * c.R * c.R
}

func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

func New(r float64) *Circle { return &Circle{R: r} }
`

func TestGoParser(t *testing.T) {
	path := writeFile(t, t.TempDir(), "shapes.go", goSample)
	lang, entities, err := NewRegistry().Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if lang != "go" {
		t.Errorf("language = %q", lang)
	}
	if entities[0].Scope != models.ScopeModule || entities[0].Name != "shapes" {
		t.Errorf("module entity = %+v", entities[0])
	}

	tests := []struct {
		scope      models.Scope
		name       string
		start, end int
		prefix     string
	}{
		{models.ScopeClass, "Circle", 7, 9, "type Circle struct"},
		{models.ScopeClass, "Point", 12, 12, "Point struct"},
		{models.ScopeClass, "Set", 13, 13, "Set[T comparable]"},
		{models.ScopeFunction, "Circle.Area", 17, 19, "func (c *Circle) Area()"},
		{models.ScopeFunction, "Set.Has", 21, 24, "func (s Set[T]) Has"},
		{models.ScopeFunction, "New", 26, 26, "func New("},
	}
	for _, tt := range tests {
		e := find(entities, tt.scope, tt.name)
		if e == nil {
			t.Errorf("missing %s %s", tt.scope, tt.name)
			continue
		}
		if e.Location.StartLine != tt.start || e.Location.EndLine != tt.end {
			t.Errorf("%s: lines %d-%d, want %d-%d", tt.name, e.Location.StartLine, e.Location.EndLine, tt.start, tt.end)
		}
		if !strings.HasPrefix(e.Source, tt.prefix) {
			t.Errorf("%s: source %q, want prefix %q", tt.name, e.Source, tt.prefix)
		}
	}
	if len(entities) != len(tests)+1 {
		t.Errorf("got %d entities, want %d", len(entities), len(tests)+1)
	}
}

func TestGoParser_SyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.go", "package bad\nfunc {\n")
	_, _, err := NewRegistry().Extract(context.Background(), path)
	if err == nil || errors.Is(err, ErrUnsupported) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestDecodeSource(t *testing.T) {
	got := decodeSource([]byte("\ufeffa\r\nb\x80"))
	if got != "a\nb\ufffd" {
		t.Errorf("got %q", got)
	}
}
