package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/internal/pipeline"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "search.bleve"), nil)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func entry(scope models.Scope, name, parent string, line int, desc string) pipeline.Entry {
	return pipeline.Entry{
		Entity: models.Entity{
			Scope:      scope,
			Name:       name,
			ParentName: parent,
			Language:   "python",
			Location:   models.Location{StartLine: line},
			Hash:       "sha256:" + name,
		},
		Description: desc,
	}
}

func calcOutput() pipeline.FileOutput {
	module := entry(models.ScopeModule, "calc", "", 1, "Arithmetic helpers for invoices.")
	return pipeline.FileOutput{
		Path:     "/proj/pkg/calc.py",
		KeyPath:  "pkg/calc.py",
		Language: "python",
		Module:   &module,
		Entries: []pipeline.Entry{
			entry(models.ScopeClass, "Calc", "", 3, "Keeps a running total."),
			entry(models.ScopeFunction, "mul", "Calc", 5, "Multiplies two numbers."),
			entry(models.ScopeFunction, "tax", "", 9, "Computes sales tax for an invoice."),
		},
	}
}

func TestDocuments(t *testing.T) {
	out := calcOutput()
	out.Entries = append(out.Entries, entry(models.ScopeFunction, "blank", "", 12, ""))

	docs := Documents(out)
	if len(docs) != 4 {
		t.Fatalf("expected 4 documents, got %d", len(docs))
	}
	if docs[0].Scope != "module" || docs[0].Path != "pkg/calc.py" {
		t.Errorf("first document = %+v", docs[0])
	}
	if docs[2].ID() != "pkg/calc.py::function:Calc.mul" {
		t.Errorf("ID = %q", docs[2].ID())
	}
}

func TestBleveIndex_WriteAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Write(ctx, calcOutput()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n, err := idx.DocCount(); err != nil || n != 4 {
		t.Fatalf("DocCount = %d, %v", n, err)
	}

	results, err := idx.Search(ctx, "multiplies", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	doc := results[0].Doc
	if doc.QualifiedName() != "Calc.mul" || doc.Path != "pkg/calc.py" || doc.StartLine != 5 || doc.Scope != "function" {
		t.Errorf("result document = %+v", doc)
	}

	results, err = idx.Search(ctx, "invoice", 10, &SearchOptions{Scope: "function"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Doc.Name != "tax" {
		t.Errorf("scoped search = %+v", results)
	}
}

func TestBleveIndex_NameBoost(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	out := pipeline.FileOutput{
		Path:    "/proj/a.py",
		KeyPath: "a.py",
		Entries: []pipeline.Entry{
			entry(models.ScopeFunction, "render", "", 1, "Writes the page."),
			entry(models.ScopeFunction, "page", "", 5, "Calls render on every template and render again on layouts."),
		},
	}
	if err := idx.Write(ctx, out); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(ctx, "render", 10, &SearchOptions{NameBoost: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Doc.Name != "render" {
		t.Errorf("expected name match first, got %+v", results)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Write(ctx, calcOutput()); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(ctx, "multiplise", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("exact search should miss a typo, got %d", len(results))
	}

	results, err = idx.Search(ctx, "multiplise", 10, &SearchOptions{FuzzyEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Doc.Name != "mul" {
		t.Errorf("fuzzy search = %+v", results)
	}
}

func TestBleveIndex_RewriteReplacesFile(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	out := calcOutput()
	if err := idx.Write(ctx, out); err != nil {
		t.Fatal(err)
	}
	out.Entries = out.Entries[:1]
	if err := idx.Write(ctx, out); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.DocCount(); n != 2 {
		t.Errorf("DocCount after rewrite = %d, want 2", n)
	}
	results, err := idx.Search(ctx, "multiplies", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("removed entity still searchable: %+v", results)
	}
}

func TestBleveIndex_DeleteFile(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Write(ctx, calcOutput()); err != nil {
		t.Fatal(err)
	}
	other := pipeline.FileOutput{
		Path:    "/proj/b.py",
		KeyPath: "b.py",
		Entries: []pipeline.Entry{entry(models.ScopeFunction, "other", "", 1, "Does other things.")},
	}
	if err := idx.Write(ctx, other); err != nil {
		t.Fatal(err)
	}

	if err := idx.DeleteFile(ctx, "pkg/calc.py"); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.DocCount(); n != 1 {
		t.Errorf("DocCount after delete = %d, want 1", n)
	}
	if err := idx.DeleteFile(ctx, "missing.py"); err != nil {
		t.Errorf("deleting an unknown path: %v", err)
	}
}

func TestBleveIndex_ReopenAndTerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.bleve")
	idx, err := NewBleveIndex(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Write(context.Background(), calcOutput()); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	idx, err = NewBleveIndex(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	terms, err := idx.Terms()
	if err != nil {
		t.Fatal(err)
	}
	if terms["invoice"] != 1 || terms["calc"] == 0 {
		t.Errorf("terms = %v", terms)
	}

	if got, ok := NewSuggester(idx).Correct("invoise"); !ok || got != "invoice" {
		t.Errorf("Correct = %q, %v", got, ok)
	}
}
