// Package threadsync implements a shutdown/pause rendezvous every
// worker goroutine in the system observes, used to take consistent
// snapshots of the frontier, middle queue, and URL store without
// stop-the-world locking.
package threadsync

import "sync"

// ThreadSync coordinates shutdown and pause across worker goroutines.
// sync.Cond is used rather than channels because the pause rendezvous
// needs exactly the pattern Cond provides: a predicate-guarded wait
// that an arbitrary number of externally-registered condition
// variables can be broadcast to from one place.
type ThreadSync struct {
	mu        sync.Mutex
	allPaused *sync.Cond
	unpause   *sync.Cond

	registered  []*sync.Cond
	numPaused   int
	shouldPause bool
	shutdown    bool
}

// New returns a ready-to-use ThreadSync.
func New() *ThreadSync {
	t := &ThreadSync{}
	t.allPaused = sync.NewCond(&t.mu)
	t.unpause = sync.NewCond(&t.mu)
	return t
}

// RegisterCV registers cv so Shutdown and a pause rendezvous can
// broadcast it, waking a worker blocked on its own condition variable.
func (t *ThreadSync) RegisterCV(cv *sync.Cond) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registered = append(t.registered, cv)
}

// ShouldSynchronize is a fast check for either shutdown or pause.
func (t *ThreadSync) ShouldSynchronize() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown || t.shouldPause
}

// ShouldShutdown reports whether shutdown has been requested.
func (t *ThreadSync) ShouldShutdown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown
}

// ShouldPause reports whether a pause has been requested.
func (t *ThreadSync) ShouldPause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shouldPause
}

// MaybePause blocks the caller at the rendezvous point if a pause is
// in effect, incrementing the paused-counter StartPause waits on, and
// returns once the pause ends or shutdown is requested.
func (t *ThreadSync) MaybePause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.shouldPause {
		return
	}

	t.numPaused++
	t.allPaused.Signal()
	for _, cv := range t.registered {
		cv.Signal()
	}
	for t.shouldPause && !t.shutdown {
		t.unpause.Wait()
	}
	t.numPaused--
}

// Shutdown sets the shutdown flag and wakes every registered and
// internal condition variable so blocked workers observe it promptly.
// Idempotent.
func (t *ThreadSync) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return
	}
	t.shutdown = true
	t.unpause.Broadcast()
	for _, cv := range t.registered {
		cv.Broadcast()
	}
}

// StartPause requests a pause and blocks until exactly n workers have
// entered MaybePause (or shutdown happens — callers racing shutdown
// against a pause should recheck ShouldShutdown after this returns).
func (t *ThreadSync) StartPause(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shouldPause = true
	for t.numPaused != n && !t.shutdown {
		t.allPaused.Wait()
	}
}

// EndPause clears the pause flag and releases every worker blocked in
// MaybePause.
func (t *ThreadSync) EndPause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shouldPause = false
	t.unpause.Broadcast()
}
