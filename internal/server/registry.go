package server

import (
	"sync"

	"legisum/internal/pipeline"
)

// runEntry tracks one pipeline run: its buffered event history for
// late-joining watchers, live subscribers, and the final report.
type runEntry struct {
	mu     sync.Mutex
	events []pipeline.Event
	subs   map[chan pipeline.Event]struct{}
	report *pipeline.RunReport
	errMsg string
	done   bool
}

// registry is the in-memory run store behind the API. Runs are kept for
// the life of the process.
type registry struct {
	mu   sync.RWMutex
	runs map[string]*runEntry
}

func newRegistry() *registry {
	return &registry{runs: make(map[string]*runEntry)}
}

func (r *registry) create(runID string) *runEntry {
	entry := &runEntry{subs: make(map[chan pipeline.Event]struct{})}
	r.mu.Lock()
	r.runs[runID] = entry
	r.mu.Unlock()
	return entry
}

func (r *registry) get(runID string) (*runEntry, bool) {
	r.mu.RLock()
	entry, ok := r.runs[runID]
	r.mu.RUnlock()
	return entry, ok
}

// emit records the event and fans it out. Slow subscribers lose events
// rather than blocking the run.
func (e *runEntry) emit(ev pipeline.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// finish stores the outcome and closes every subscriber channel.
func (e *runEntry) finish(report pipeline.RunReport, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.report = &report
	if err != nil {
		e.errMsg = err.Error()
	}
	e.done = true
	for ch := range e.subs {
		close(ch)
		delete(e.subs, ch)
	}
}

// subscribe replays the event history into a fresh channel and registers
// it for live events. The channel is closed when the run finishes.
func (e *runEntry) subscribe() (<-chan pipeline.Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan pipeline.Event, len(e.events)+64)
	for _, ev := range e.events {
		ch <- ev
	}
	if e.done {
		close(ch)
		return ch, func() {}
	}
	e.subs[ch] = struct{}{}
	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (e *runEntry) snapshot() (report *pipeline.RunReport, errMsg string, done bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.report, e.errMsg, e.done
}
