// Package toast is the advisory message channel: at most one active
// message, shown for a fixed window, replaced rather than queued.
package toast

import (
	"sync"
	"time"
)

// DefaultDuration is how long a message stays visible.
const DefaultDuration = 3 * time.Second

// Toaster holds the single active message. Showing a new message
// replaces the current one and arms a fresh auto-clear window; the
// replaced message's timer must never clear its successor.
type Toaster struct {
	duration time.Duration
	after    func(time.Duration, func()) *time.Timer

	mu      sync.Mutex
	message string
	active  bool
	seq     uint64
	timer   *time.Timer
}

// Option tweaks Toaster construction; used by tests to shorten or
// fake the clock.
type Option func(*Toaster)

func WithDuration(d time.Duration) Option {
	return func(t *Toaster) {
		if d > 0 {
			t.duration = d
		}
	}
}

func WithAfterFunc(after func(time.Duration, func()) *time.Timer) Option {
	return func(t *Toaster) {
		if after != nil {
			t.after = after
		}
	}
}

func New(opts ...Option) *Toaster {
	t := &Toaster{
		duration: DefaultDuration,
		after:    time.AfterFunc,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Show displays msg, replacing any currently visible message. The
// auto-clear window restarts from this call, not from the message it
// replaced.
func (t *Toaster) Show(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.seq++
	seq := t.seq
	t.message = msg
	t.active = true
	t.timer = t.after(t.duration, func() {
		t.clear(seq)
	})
}

// Current returns the visible message, if any.
func (t *Toaster) Current() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return "", false
	}
	return t.message, true
}

// clear dismisses the message only if it is still the one the timer
// was armed for.
func (t *Toaster) clear(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seq != t.seq {
		return
	}
	t.active = false
	t.message = ""
}
