package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsage(t *testing.T) {
	dir := t.TempDir()

	db := filepath.Join(dir, "hashes.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("wal"), 0644); err != nil {
		t.Fatal(err)
	}

	lod := filepath.Join(dir, "lod", "pkg")
	if err := os.MkdirAll(lod, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lod, "a.py.lod"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lod, "b.py.lod"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	got, total, err := DiskUsage(map[string]string{
		"hash_db": db,
		"lod":     filepath.Join(dir, "lod"),
		"search":  filepath.Join(dir, "missing.bleve"),
		"empty":   "",
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 11 {
		t.Errorf("total: got %d, want 11", total)
	}
	want := map[string]int64{"empty": 0, "hash_db": 8, "lod": 3, "search": 0}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, f := range got {
		if i > 0 && got[i-1].Name > f.Name {
			t.Errorf("not sorted: %s before %s", got[i-1].Name, f.Name)
		}
		if f.Bytes != want[f.Name] {
			t.Errorf("%s: got %d bytes, want %d", f.Name, f.Bytes, want[f.Name])
		}
	}
}
