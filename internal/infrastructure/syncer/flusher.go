package syncer

import (
	"sync"
	"time"
)

// DefaultWindow is the quiescence period before a dirty key is flushed.
const DefaultWindow = 800 * time.Millisecond

// Flusher coalesces bursts of Mark calls per key into one flush callback.
// Each Mark restarts the key's window; the callback runs on its own
// goroutine once the window passes without another Mark. Keys are
// independent of each other.
type Flusher[K comparable] struct {
	window time.Duration
	flush  func(K)

	mu      sync.Mutex
	timers  map[K]*time.Timer
	gen     map[K]uint64
	stopped bool
}

// NewFlusher creates a flusher. A non-positive window means DefaultWindow.
func NewFlusher[K comparable](window time.Duration, flush func(K)) *Flusher[K] {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Flusher[K]{
		window: window,
		flush:  flush,
		timers: make(map[K]*time.Timer),
		gen:    make(map[K]uint64),
	}
}

// Window returns the quiescence period.
func (f *Flusher[K]) Window() time.Duration { return f.window }

// Mark (re)starts the window of key.
func (f *Flusher[K]) Mark(key K) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	if t, ok := f.timers[key]; ok {
		t.Stop()
	}
	f.gen[key]++
	g := f.gen[key]
	f.timers[key] = time.AfterFunc(f.window, func() { f.fire(key, g) })
}

func (f *Flusher[K]) fire(key K, g uint64) {
	f.mu.Lock()
	// A timer that lost the race with Stop or a newer Mark is stale.
	if f.stopped || f.gen[key] != g {
		f.mu.Unlock()
		return
	}
	delete(f.timers, key)
	f.mu.Unlock()

	f.flush(key)
}

// Pending reports whether key has a running window.
func (f *Flusher[K]) Pending(key K) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.timers[key]
	return ok
}

// Cancel drops the pending window of key without flushing.
func (f *Flusher[K]) Cancel(key K) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelLocked(key)
}

// CancelAll drops every pending window without flushing.
func (f *Flusher[K]) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.timers {
		f.cancelLocked(key)
	}
}

func (f *Flusher[K]) cancelLocked(key K) {
	if t, ok := f.timers[key]; ok {
		t.Stop()
		delete(f.timers, key)
	}
	f.gen[key]++
}

// Stop cancels everything; later Marks are ignored.
func (f *Flusher[K]) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.timers {
		f.cancelLocked(key)
	}
	f.stopped = true
}
