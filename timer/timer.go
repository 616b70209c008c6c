// Package timer provides a cancelable single-shot timer with at most one
// outstanding schedule per owner.
package timer

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// CancelToken identifies one Schedule call. The zero token never matches.
type CancelToken uint64

// Timer runs one callback after a delay. Scheduling again replaces the
// outstanding callback. A callback is delivered at most once and never after
// Cancel has returned for its token, unless it had already started.
type Timer struct {
	clock clock.Clock

	mu      sync.Mutex
	seq     uint64
	current CancelToken
	pending *clock.Timer
}

// New creates a Timer driven by c. A nil clock uses the wall clock.
func New(c clock.Clock) *Timer {
	if c == nil {
		c = clock.New()
	}
	return &Timer{clock: c}
}

// Schedule arranges for fn to run once after d and returns the token that
// cancels it. Any previously scheduled callback is canceled first.
func (t *Timer) Schedule(d time.Duration, fn func()) CancelToken {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.seq++
	token := CancelToken(t.seq)
	t.current = token
	t.pending = t.clock.AfterFunc(d, func() { t.fire(token, fn) })
	return token
}

// Cancel stops the callback for token. It reports whether a pending callback
// was prevented. Canceling twice, canceling a fired timer or canceling a
// replaced token is a no-op.
func (t *Timer) Cancel(token CancelToken) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if token == 0 || token != t.current {
		return false
	}
	t.stopLocked()
	return true
}

// Stop cancels whatever is outstanding.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopLocked()
	t.mu.Unlock()
}

// Pending reports whether a callback is scheduled and has not fired.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != 0
}

func (t *Timer) stopLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.current = 0
}

func (t *Timer) fire(token CancelToken, fn func()) {
	t.mu.Lock()
	if token != t.current {
		t.mu.Unlock()
		return
	}
	t.current = 0
	t.pending = nil
	t.mu.Unlock()

	fn()
}
