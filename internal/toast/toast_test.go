package toast

import (
	"testing"
	"time"
)

// fakeClock captures armed timers so tests fire them by hand.
type fakeClock struct {
	fires []func()
}

func (c *fakeClock) after(_ time.Duration, fn func()) *time.Timer {
	c.fires = append(c.fires, fn)
	return time.NewTimer(time.Hour)
}

func TestShowAndAutoClear(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{}
	toaster := New(WithAfterFunc(clock.after))

	toaster.Show("saved")
	if msg, ok := toaster.Current(); !ok || msg != "saved" {
		t.Fatalf("expected active message, got %q %v", msg, ok)
	}

	clock.fires[0]()
	if _, ok := toaster.Current(); ok {
		t.Fatal("expected message to auto-clear")
	}
}

func TestReplaceNotQueue(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{}
	toaster := New(WithAfterFunc(clock.after))

	toaster.Show("X")
	toaster.Show("Y")

	if msg, ok := toaster.Current(); !ok || msg != "Y" {
		t.Fatalf("expected Y to replace X, got %q %v", msg, ok)
	}

	// X's window elapsing must not clear Y.
	clock.fires[0]()
	if msg, ok := toaster.Current(); !ok || msg != "Y" {
		t.Fatalf("expected Y to survive X's timer, got %q %v", msg, ok)
	}

	// Y clears on its own window.
	clock.fires[1]()
	if _, ok := toaster.Current(); ok {
		t.Fatal("expected Y to clear on its own timer")
	}
}

func TestRealTimerClears(t *testing.T) {
	t.Parallel()

	toaster := New(WithDuration(10 * time.Millisecond))
	toaster.Show("quick")

	deadline := time.After(time.Second)
	for {
		if _, ok := toaster.Current(); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("message never auto-cleared")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
