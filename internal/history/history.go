package history

import (
	"sync"
	"time"
)

// Trend labels for issue counts between two consecutive runs.
const (
	Improving = "IMPROVING"
	Declining = "DECLINING"
	Same      = "SAME"
	FirstRun  = "FIRST_RUN"
)

// Label compares issue counts. prev < 0 means there was no previous run.
// Fewer issues is an improvement.
func Label(prev, curr int) string {
	if prev < 0 {
		return FirstRun
	}
	d := curr - prev
	if d < 0 {
		return Improving
	} else if d > 0 {
		return Declining
	}
	return Same
}

// Ring is a bounded, concurrency-safe history that drops its oldest entry
// once full.
type Ring[T any] struct {
	mu      sync.RWMutex
	cap     int
	entries []T
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{cap: capacity, entries: make([]T, 0, capacity)}
}

func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, v)
	if len(r.entries) > r.cap {
		r.entries = append(r.entries[:0:0], r.entries[len(r.entries)-r.cap:]...)
	}
}

// All returns a copy, oldest first.
func (r *Ring[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]T(nil), r.entries...)
}

func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Ring[T]) Last() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero T
	if len(r.entries) == 0 {
		return zero, false
	}
	return r.entries[len(r.entries)-1], true
}

// Within returns entries stamped after since, oldest first.
func (r *Ring[T]) Within(since time.Time, ts func(T) time.Time) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []T
	for _, e := range r.entries {
		if ts(e).After(since) {
			out = append(out, e)
		}
	}
	return out
}

// Filter keeps only the entries for which keep returns true.
func (r *Ring[T]) Filter(keep func(T) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries[:0]
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	var zero T
	for i := len(out); i < len(r.entries); i++ {
		r.entries[i] = zero
	}
	r.entries = out
}
