package fixtures

import (
	"sync"
)

// Recorder collects the marks, events and values written by fixture
// originals and hooks
type Recorder struct {
	mu     sync.Mutex
	marks  map[string]bool
	events []string
	values map[string]any
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{
		marks:  make(map[string]bool),
		values: make(map[string]any),
	}
}

// Mark flags name as having happened
func (r *Recorder) Mark(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks[name] = true
}

// Marked reports whether name was flagged
func (r *Recorder) Marked(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marks[name]
}

// Event appends to the ordered event log
func (r *Recorder) Event(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the event log
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Set stores a named value
func (r *Recorder) Set(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
}

// Value returns a named value
func (r *Recorder) Value(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	return v, ok
}

// Reset forgets everything recorded
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks = make(map[string]bool)
	r.events = nil
	r.values = make(map[string]any)
}
