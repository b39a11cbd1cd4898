package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestLine(t *testing.T) {
	s := Snapshot{
		FilesScanned: 2, FilesTotal: 5, ActiveScanners: 1, MaxWorkers: 4,
		EntitiesDiscovered: 10, EntitiesGenerated: 3, EntitiesQueued: 7,
		ActiveWorkers: 2, FilesWritten: 1,
	}
	want := "Files scanned 2/5 [1/4] -> Entities discovered 10 -> Descriptions generated 3/7 [2/4] -> LOD files written 1"
	if got := Line(s); got != want {
		t.Errorf("Line() =\n%s\nwant\n%s", got, want)
	}
}

func TestReporter_Counts(t *testing.T) {
	r := NewReporter(3, 2, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ScannerBusy()
			r.Discovered(2, 1)
			r.FileScanned()
			r.ScannerIdle()
			r.WorkerBusy()
			r.Generated()
			r.WorkerIdle()
		}()
	}
	wg.Wait()
	r.FileWritten()

	s := r.Close()
	if s.FilesScanned != 50 || s.EntitiesDiscovered != 100 || s.EntitiesQueued != 50 || s.EntitiesGenerated != 50 {
		t.Errorf("unexpected counters: %+v", s)
	}
	if s.ActiveScanners != 0 || s.ActiveWorkers != 0 {
		t.Errorf("pools should be idle: %+v", s)
	}
	if s.FilesTotal != 3 || s.MaxWorkers != 2 || s.FilesWritten != 1 {
		t.Errorf("unexpected totals: %+v", s)
	}
}

func TestReporter_ObserverOnChange(t *testing.T) {
	var lines []string
	r := NewReporter(1, 1, func(s Snapshot) { lines = append(lines, Line(s)) })
	r.FileScanned()
	r.Discovered(0, 0) // no visible change
	r.FileWritten()
	r.Close()

	if len(lines) != 2 {
		t.Fatalf("observer called %d times, want 2: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "Files scanned 1/1") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestReporter_AfterClose(t *testing.T) {
	r := NewReporter(1, 1, nil)
	r.FileScanned()
	if s := r.Snapshot(); s.FilesScanned != 1 {
		t.Errorf("Snapshot before close: %+v", s)
	}
	r.Close()

	// Calls after Close are ignored rather than blocking or panicking.
	r.FileScanned()
	if s := r.Snapshot(); s != (Snapshot{}) {
		t.Errorf("Snapshot after close should be zero, got %+v", s)
	}
	if s := r.Close(); s != (Snapshot{}) {
		t.Errorf("second Close should be zero, got %+v", s)
	}
}

func TestReporter_Nil(t *testing.T) {
	var r *Reporter
	r.FileScanned()
	r.Discovered(1, 1)
	if s := r.Close(); s != (Snapshot{}) {
		t.Errorf("nil reporter: %+v", s)
	}
}

func TestTerminalObserver(t *testing.T) {
	var buf bytes.Buffer
	TerminalObserver(&buf)(Snapshot{FilesTotal: 1})
	if !strings.HasPrefix(buf.String(), "\rFiles scanned 0/1") {
		t.Errorf("got %q", buf.String())
	}
}
