package lodfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/internal/pipeline"
)

var (
	hashA = "sha256:" + strings.Repeat("a", 64)
	hashB = "sha256:" + strings.Repeat("b", 64)
)

func sampleOutput(root string) pipeline.FileOutput {
	path := filepath.Join(root, "pkg", "calc.py")
	return pipeline.FileOutput{
		Path:     path,
		KeyPath:  "pkg/calc.py",
		Language: "python",
		Module: &pipeline.Entry{
			Entity:      models.Entity{Scope: models.ScopeModule, Name: "calc", Language: "python"},
			Description: "Arithmetic helpers.",
		},
		Entries: []pipeline.Entry{
			{
				Entity: models.Entity{
					Scope:    models.ScopeClass,
					Name:     "Calc",
					Language: "python",
					Source:   "@dataclass\nclass Calc:\n    pass",
					Hash:     hashA,
				},
				Description: "Calculator state.\nHolds the running total.",
			},
			{
				Entity: models.Entity{
					Scope:      models.ScopeFunction,
					Name:       "mul",
					ParentName: "Calc",
					Language:   "python",
					Source:     "    async def mul(self, a, b):\n        return a * b",
					Hash:       hashB,
				},
				Description: "Multiplies two numbers.",
			},
		},
	}
}

func TestRender(t *testing.T) {
	got := Render(sampleOutput("/proj"))
	want := "# @lod description:Arithmetic helpers.\n" +
		"\n" +
		"# @lod hash:" + hashA + " stale:false\n" +
		"# @lod description:Calculator state.\n" +
		"# Holds the running total.\n" +
		"class Calc:\n" +
		"\n" +
		"# @lod hash:" + hashB + " stale:false\n" +
		"# @lod description:Multiplies two numbers.\n" +
		"async def mul(self, a, b):\n"
	if got != want {
		t.Errorf("Render mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}

	if Render(pipeline.FileOutput{}) != "" {
		t.Error("empty output should render nothing")
	}
}

func TestParse(t *testing.T) {
	comments := Parse(Render(sampleOutput("/proj")))
	if len(comments) != 3 {
		t.Fatalf("expected 3 comments, got %d: %+v", len(comments), comments)
	}
	if comments[0].Hash != "" || comments[0].Description != "Arithmetic helpers." {
		t.Errorf("module comment = %+v", comments[0])
	}
	if comments[1].Hash != hashA || comments[1].Description != "Calculator state.\nHolds the running total." {
		t.Errorf("class comment = %+v", comments[1])
	}
	if comments[2].Hash != hashB || comments[2].Stale {
		t.Errorf("function comment = %+v", comments[2])
	}
}

func TestParse_StaleAndMalformed(t *testing.T) {
	content := strings.Join([]string{
		"# @lod hash:" + hashA + " stale:true",
		"# @lod description:Old text.",
		"def f():",
		"",
		"# @lod hash:sha256:nothex stale:false",
		"# @lod description:Dropped.",
		"def g():",
		"",
		"# @lod hash:" + hashB,
		"# @lod stale:yes",
		"# @lod description:Separate stale line.",
	}, "\n")

	comments := Parse(content)
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %+v", comments)
	}
	if !comments[0].Stale || comments[0].Description != "Old text." {
		t.Errorf("first = %+v", comments[0])
	}
	if comments[1].Hash != hashB || !comments[1].Stale {
		t.Errorf("second = %+v", comments[1])
	}
}

func TestParseEntries(t *testing.T) {
	entries := ParseEntries(Render(sampleOutput("/proj")), "calc")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %+v", entries)
	}
	if entries[0].Scope != models.ScopeModule || entries[0].Name != "calc" {
		t.Errorf("module entry = %+v", entries[0])
	}
	if entries[1].Scope != models.ScopeClass || entries[1].Name != "Calc" || entries[1].Signature != "class Calc:" {
		t.Errorf("class entry = %+v", entries[1])
	}
	if entries[2].Scope != models.ScopeFunction || entries[2].Name != "mul" {
		t.Errorf("function entry = %+v", entries[2])
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		sig    string
		scope  models.Scope
		name   string
		parent string
	}{
		{"class Calc(Base):", models.ScopeClass, "Calc", ""},
		{"def add(a, b):", models.ScopeFunction, "add", ""},
		{"async def fetch(url):", models.ScopeFunction, "fetch", ""},
		{"type Circle struct", models.ScopeClass, "Circle", ""},
		{"type Set[T comparable] map[T]struct{}", models.ScopeClass, "Set", ""},
		{"func New(r float64) *Circle", models.ScopeFunction, "New", ""},
		{"func (c *Circle) Area() float64", models.ScopeFunction, "Area", "Circle"},
		{"func (s Set[T]) Has(v T) bool", models.ScopeFunction, "Has", "Set"},
		{"x = 1", models.ScopeFunction, "<unknown>", ""},
	}
	for _, tc := range cases {
		scope, name, parent := classify(tc.sig)
		if scope != tc.scope || name != tc.name || parent != tc.parent {
			t.Errorf("classify(%q) = %s %s %s", tc.sig, scope, name, parent)
		}
	}
}

func TestSignature(t *testing.T) {
	cases := []struct {
		entity models.Entity
		want   string
	}{
		{models.Entity{Scope: models.ScopeFunction, Source: "@cache\ndef f(x):\n    return x"}, "def f(x):"},
		{models.Entity{Scope: models.ScopeFunction, Language: "go", Source: "// Area.\nfunc (c *Circle) Area() float64 {\n}"}, "func (c *Circle) Area() float64"},
		{models.Entity{Scope: models.ScopeClass, Language: "go", Source: "type Circle struct {\n\tR float64\n}"}, "type Circle struct"},
		{models.Entity{Scope: models.ScopeClass, Language: "go", Source: "Point struct{ X, Y int }"}, "type Point struct{ X, Y int }"},
		{models.Entity{Scope: models.ScopeFunction, Name: "g", Source: "lambda: 1"}, "lambda: 1"},
		{models.Entity{Scope: models.ScopeFunction, Name: "g"}, "# function g"},
	}
	for _, tc := range cases {
		if got := Signature(&tc.entity); got != tc.want {
			t.Errorf("Signature(%q) = %q, want %q", tc.entity.Source, got, tc.want)
		}
	}
}

func TestWriter_WriteAndRead(t *testing.T) {
	root := t.TempDir()
	lodDir := filepath.Join(root, ".codelod", "lod")
	w := NewWriter(root, lodDir)

	out := sampleOutput(root)
	if err := w.Write(context.Background(), out); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(lodDir, "pkg", "calc.py.lod")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != Render(out) {
		t.Errorf("file content mismatch:\n%s", data)
	}

	leftovers, _ := filepath.Glob(filepath.Join(lodDir, "pkg", ".lod-*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}

	entries, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Name != "calc" {
		t.Errorf("Read = %+v", entries)
	}

	// Overwrite with fewer entries.
	out.Entries = out.Entries[:1]
	if err := w.Write(context.Background(), out); err != nil {
		t.Fatal(err)
	}
	entries, err = Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries after rewrite, got %d", len(entries))
	}

	if err := Remove(root, lodDir, out.Path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("lod file should be gone, stat err = %v", err)
	}
	if err := Remove(root, lodDir, out.Path); err != nil {
		t.Errorf("removing a missing file should succeed, got %v", err)
	}
}

func TestWriter_OutsideRoot(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(filepath.Join(root, "proj"), filepath.Join(root, "proj", ".codelod", "lod"))

	out := sampleOutput(filepath.Join(root, "other"))
	if err := w.Write(context.Background(), out); err == nil {
		t.Error("expected error for source outside root")
	}
}

func TestWriter_CancelledContext(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, filepath.Join(root, "lod"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Write(ctx, sampleOutput(root)); err == nil {
		t.Error("expected context error")
	}
}

func TestRead_Missing(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "nope.py.lod"))
	if err != nil || entries != nil {
		t.Errorf("Read(missing) = %v, %v", entries, err)
	}
}

func TestReadAll(t *testing.T) {
	root := t.TempDir()
	lodDir := filepath.Join(root, ".code-lod", ".lod")

	files, err := ReadAll(lodDir)
	if err != nil || len(files) != 0 {
		t.Fatalf("ReadAll(missing) = %v, %v", files, err)
	}

	w := NewWriter(root, lodDir)
	second := sampleOutput(root)
	first := sampleOutput(root)
	first.Path = filepath.Join(root, "a.py")
	for _, out := range []pipeline.FileOutput{second, first} {
		if err := w.Write(context.Background(), out); err != nil {
			t.Fatal(err)
		}
	}

	files, err = ReadAll(lodDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Source != "a.py" || files[1].Source != "pkg/calc.py" {
		t.Fatalf("ReadAll = %+v", files)
	}
	if len(files[1].Entries) != 3 || files[1].Entries[0].Name != "calc" {
		t.Errorf("entries = %+v", files[1].Entries)
	}
}
