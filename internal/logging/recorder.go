package logging

import (
	"fmt"
	"sync"
)

// Entry is one captured log line.
type Entry struct {
	Level   string
	Message string
}

// Recorder is a Logger that keeps every line in memory. Intended for tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (r *Recorder) Debug(format string, args ...any) { r.record("debug", format, args...) }
func (r *Recorder) Info(format string, args ...any)  { r.record("info", format, args...) }
func (r *Recorder) Warn(format string, args ...any)  { r.record("warn", format, args...) }
func (r *Recorder) Error(format string, args ...any) { r.record("error", format, args...) }

// Entries returns a copy of the captured lines.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns how many lines were captured at level.
func (r *Recorder) Count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
