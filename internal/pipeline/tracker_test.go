package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/codelod/internal/models"
)

func TestTracker_ExactlyOneCompletionPerFile(t *testing.T) {
	tr := newTracker()
	defer tr.close()

	const files, perFile = 20, 7
	for f := 0; f < files; f++ {
		tr.register(fmt.Sprintf("/src/f%d.py", f), perFile)
	}

	var completions atomic.Int32
	var mu sync.Mutex
	batches := make(map[string]int)

	var wg sync.WaitGroup
	for f := 0; f < files; f++ {
		for e := 0; e < perFile; e++ {
			wg.Add(1)
			go func(path, name string) {
				defer wg.Done()
				batch, done := tr.submit(models.GenerationResult{
					FilePath: path,
					Entity:   models.Entity{Name: name},
				})
				if !done {
					if batch != nil {
						t.Errorf("incomplete submit returned a batch")
					}
					return
				}
				completions.Add(1)
				mu.Lock()
				batches[path] += len(batch)
				mu.Unlock()
			}(fmt.Sprintf("/src/f%d.py", f), fmt.Sprintf("e%d", e))
		}
	}
	wg.Wait()

	if completions.Load() != files {
		t.Errorf("completions = %d, want %d", completions.Load(), files)
	}
	for path, n := range batches {
		if n != perFile {
			t.Errorf("%s: batch of %d, want %d", path, n, perFile)
		}
	}
}

func TestTracker_SingleEntityFile(t *testing.T) {
	tr := newTracker()
	tr.register("/a.py", 1)
	batch, done := tr.submit(models.GenerationResult{FilePath: "/a.py"})
	if !done || len(batch) != 1 {
		t.Errorf("single-entity file should complete on first submit, got %v %d", done, len(batch))
	}
	tr.close()
}
