package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{
		"a.py",
		"pkg/b.py",
		"pkg/notes.txt",
		".git/hooks/c.py",
		".code-lod/lod/a.py.lod",
		"node_modules/x/d.py",
	} {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	isPython := func(p string) bool { return strings.HasSuffix(p, ".py") }

	files, err := CollectFiles([]string{dir}, isPython)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.py"), filepath.Join(dir, "pkg", "b.py")}
	if len(files) != len(want) {
		t.Fatalf("got %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}

	single, err := CollectFiles([]string{filepath.Join(dir, "pkg", "b.py"), filepath.Join(dir, "pkg", "notes.txt")}, isPython)
	if err != nil {
		t.Fatal(err)
	}
	if len(single) != 1 {
		t.Errorf("explicit files: got %v", single)
	}

	if _, err := CollectFiles([]string{filepath.Join(dir, "missing")}, isPython); err == nil {
		t.Error("expected error for missing path")
	}
}
