package recording

import (
	"slices"
	"sync"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

// Recorder collects every event a tracker emits from the moment it starts.
type Recorder struct {
	mu     sync.Mutex
	events []tracker.Event
	stop   func()
}

func NewRecorder(t *tracker.Tracker) *Recorder {
	r := &Recorder{}
	r.stop = t.Subscribe(r.record)
	return r
}

func (r *Recorder) record(e tracker.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

// Events returns a copy of the events collected so far.
func (r *Recorder) Events() []tracker.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.events)
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}

// Clear drops the collected events and keeps recording.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}

// Stop unsubscribes from the tracker. The collected events stay available.
func (r *Recorder) Stop() {
	r.stop()
}

// Snapshot captures the events collected so far as a new recording.
func (r *Recorder) Snapshot(name string) (Recording, error) {
	return New(name, r.Events())
}
