package pipeline

import "github.com/hyperjump/codelod/internal/models"

// tracker owns per-file completion state in a single goroutine. A file is registered
// with its entity count before any of its items are queued; each submitted result
// decrements the count, and the submission that reaches zero receives the whole batch.
type tracker struct {
	msgs chan trackerMsg
	done chan struct{}
}

type trackerMsg struct {
	// register
	path  string
	count int
	// submit
	result *models.GenerationResult
	reply  chan []models.GenerationResult
}

type fileState struct {
	pending int
	results []models.GenerationResult
}

func newTracker() *tracker {
	t := &tracker{
		msgs: make(chan trackerMsg),
		done: make(chan struct{}),
	}
	go t.loop()
	return t
}

func (t *tracker) loop() {
	defer close(t.done)
	files := make(map[string]*fileState)
	for msg := range t.msgs {
		if msg.result == nil {
			files[msg.path] = &fileState{pending: msg.count, results: make([]models.GenerationResult, 0, msg.count)}
			continue
		}
		st, ok := files[msg.result.FilePath]
		if !ok {
			panic("pipeline: result for unregistered file " + msg.result.FilePath)
		}
		st.results = append(st.results, *msg.result)
		st.pending--
		if st.pending == 0 {
			delete(files, msg.result.FilePath)
			msg.reply <- st.results
			continue
		}
		msg.reply <- nil
	}
}

// register must return before the file's first item is queued.
func (t *tracker) register(path string, count int) {
	t.msgs <- trackerMsg{path: path, count: count}
}

// submit records r. It returns the file's complete batch to exactly one caller: the
// one whose result brought the pending count to zero.
func (t *tracker) submit(r models.GenerationResult) ([]models.GenerationResult, bool) {
	reply := make(chan []models.GenerationResult, 1)
	t.msgs <- trackerMsg{result: &r, reply: reply}
	batch := <-reply
	return batch, batch != nil
}

func (t *tracker) close() {
	close(t.msgs)
	<-t.done
}
