package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func pyOnly(path string) bool { return strings.HasSuffix(path, ".py") }

type events struct {
	changed chan string
	removed chan string
}

func newEvents() *events {
	return &events{changed: make(chan string, 64), removed: make(chan string, 64)}
}

func (e *events) onChange(_ context.Context, path string) { e.changed <- path }
func (e *events) onRemove(_ context.Context, path string) { e.removed <- path }

func expect(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("got event for %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func expectNone(t *testing.T, ch chan string, wait time.Duration) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected event for %q", got)
	case <-time.After(wait):
	}
}

func startWatcher(t *testing.T, root string, ev *events) *Watcher {
	t.Helper()
	w := NewWatcher(root, pyOnly, ev.onChange, ev.onRemove, WithDebounce(150*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_ChangeDebounceAndRemove(t *testing.T) {
	root := t.TempDir()
	ev := newEvents()
	startWatcher(t, root, ev)

	path := filepath.Join(root, "a.py")
	writeFile(t, path, "x = 1\n")
	writeFile(t, path, "x = 2\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")

	expect(t, ev.changed, path)
	expectNone(t, ev.changed, 400*time.Millisecond)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	expect(t, ev.removed, path)
}

func TestWatcher_SkipsStateDirectory(t *testing.T) {
	root := t.TempDir()
	state := filepath.Join(root, ".code-lod")
	if err := os.MkdirAll(state, 0755); err != nil {
		t.Fatal(err)
	}
	ev := newEvents()
	startWatcher(t, root, ev)

	writeFile(t, filepath.Join(state, "generated.py"), "x = 1\n")
	expectNone(t, ev.changed, 500*time.Millisecond)
}

func TestWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()
	ev := newEvents()
	startWatcher(t, root, ev)

	dir := filepath.Join(root, "pkg", "sub")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "c.py")
	writeFile(t, path, "def f():\n    pass\n")

	expect(t, ev.changed, path)
}

func TestWatcher_StopDropsPending(t *testing.T) {
	root := t.TempDir()
	ev := newEvents()
	w := NewWatcher(root, pyOnly, ev.onChange, ev.onRemove, WithDebounce(time.Second))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(root, "a.py"), "x = 1\n")
	deadline := time.Now().Add(3 * time.Second)
	for w.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	w.Stop()
	w.Stop()
	if w.Pending() != 0 {
		t.Errorf("Pending after Stop = %d", w.Pending())
	}
	expectNone(t, ev.changed, 1500*time.Millisecond)
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing"), nil, nil, nil)
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Fatal("expected error for a missing root")
	}
}

func TestIgnored(t *testing.T) {
	root := filepath.FromSlash("/proj")
	cases := map[string]bool{
		"/proj/a.py":                    false,
		"/proj/pkg/b.py":                false,
		"/proj/.code-lod/.lod/a.py.lod": true,
		"/proj/.git/HEAD":               true,
		"/proj/node_modules/x/y.py":     true,
		"/other/a.py":                   true,
	}
	for path, want := range cases {
		if got := ignored(root, filepath.FromSlash(path)); got != want {
			t.Errorf("ignored(%q) = %v, want %v", path, got, want)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
