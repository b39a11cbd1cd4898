// Package progress tracks pipeline counters in a single goroutine and renders them as one line.
package progress

import (
	"fmt"
	"io"
)

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	FilesScanned       int `json:"files_scanned"`
	FilesTotal         int `json:"files_total"`
	EntitiesDiscovered int `json:"entities_discovered"`
	EntitiesQueued     int `json:"entities_queued"`
	EntitiesGenerated  int `json:"entities_generated"`
	FilesWritten       int `json:"files_written"`
	ActiveScanners     int `json:"active_scanners"`
	ActiveWorkers      int `json:"active_workers"`
	MaxWorkers         int `json:"max_workers"`
}

// Line renders s as a single status line.
func Line(s Snapshot) string {
	return fmt.Sprintf(
		"Files scanned %d/%d [%d/%d] -> Entities discovered %d -> Descriptions generated %d/%d [%d/%d] -> LOD files written %d",
		s.FilesScanned, s.FilesTotal, s.ActiveScanners, s.MaxWorkers,
		s.EntitiesDiscovered,
		s.EntitiesGenerated, s.EntitiesQueued, s.ActiveWorkers, s.MaxWorkers,
		s.FilesWritten,
	)
}

// Observer is called from the reporter goroutine whenever the rendered line changes.
// It must not call back into the Reporter.
type Observer func(Snapshot)

// TerminalObserver redraws the line in place on w (usually stderr).
func TerminalObserver(w io.Writer) Observer {
	return func(s Snapshot) {
		fmt.Fprintf(w, "\r%s", Line(s))
	}
}

type message struct {
	apply func(*Snapshot)
	reply chan Snapshot
	stop  bool
}

// Reporter owns a Snapshot. Every mutation is a message to its goroutine, so callers
// never share memory with it. A nil *Reporter is valid and ignores every call.
type Reporter struct {
	msgs     chan message
	done     chan struct{}
	observer Observer
}

// NewReporter starts a reporter for filesTotal files and maxWorkers-sized pools.
// observer may be nil.
func NewReporter(filesTotal, maxWorkers int, observer Observer) *Reporter {
	r := &Reporter{
		msgs:     make(chan message, 256),
		done:     make(chan struct{}),
		observer: observer,
	}
	go r.loop(Snapshot{FilesTotal: filesTotal, MaxWorkers: maxWorkers})
	return r
}

func (r *Reporter) loop(s Snapshot) {
	defer close(r.done)
	last := ""
	for msg := range r.msgs {
		if msg.apply != nil {
			msg.apply(&s)
			if r.observer != nil {
				if line := Line(s); line != last {
					last = line
					r.observer(s)
				}
			}
		}
		if msg.reply != nil {
			msg.reply <- s
		}
		if msg.stop {
			return
		}
	}
}

// send delivers msg unless the reporter has stopped.
func (r *Reporter) send(msg message) bool {
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.msgs <- msg:
		return true
	case <-r.done:
		return false
	}
}

func (r *Reporter) update(f func(*Snapshot)) { r.send(message{apply: f}) }

func (r *Reporter) FileScanned() { r.update(func(s *Snapshot) { s.FilesScanned++ }) }
func (r *Reporter) FileWritten() { r.update(func(s *Snapshot) { s.FilesWritten++ }) }
func (r *Reporter) Generated() { r.update(func(s *Snapshot) { s.EntitiesGenerated++ }) }
func (r *Reporter) ScannerBusy() { r.update(func(s *Snapshot) { s.ActiveScanners++ }) }
func (r *Reporter) ScannerIdle() { r.update(func(s *Snapshot) { s.ActiveScanners-- }) }
func (r *Reporter) WorkerBusy() { r.update(func(s *Snapshot) { s.ActiveWorkers++ }) }
func (r *Reporter) WorkerIdle() { r.update(func(s *Snapshot) { s.ActiveWorkers-- }) }
func (r *Reporter) AddFiles(n int) { r.update(func(s *Snapshot) { s.FilesTotal += n }) }

// Discovered records n entities found in a file, of which queued need generation.
func (r *Reporter) Discovered(n, queued int) {
	r.update(func(s *Snapshot) {
		s.EntitiesDiscovered += n
		s.EntitiesQueued += queued
	})
}

// Snapshot returns the current counters. A stopped or nil reporter returns the zero value.
func (r *Reporter) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !r.send(message{reply: reply}) {
		return Snapshot{}
	}
	return r.await(reply)
}

// Close processes every pending update, stops the goroutine, and returns the final counters.
// Later calls return the zero Snapshot.
func (r *Reporter) Close() Snapshot {
	reply := make(chan Snapshot, 1)
	if !r.send(message{reply: reply, stop: true}) {
		return Snapshot{}
	}
	s := r.await(reply)
	<-r.done
	return s
}

// await waits for a reply, or gives up once the goroutine has exited without answering.
func (r *Reporter) await(reply chan Snapshot) Snapshot {
	select {
	case s := <-reply:
		return s
	case <-r.done:
		select {
		case s := <-reply:
			return s
		default:
			return Snapshot{}
		}
	}
}
