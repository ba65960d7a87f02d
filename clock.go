package obdcan

import (
	"sync"
	"time"
)

// Clock is the time source of the protocol core. Blocking waits are expressed as
// deadlines against it so tests can run on a ManualClock.
type Clock interface {
	Now() time.Time
	Sleep(time.Duration)
}

type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// ManualClock only moves when Sleep or Advance is called
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Sleep(d time.Duration) {
	c.Advance(d)
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Timer is a countdown polled by busy loops, there is no cancel, a finished
// operation simply stops looking at it.
type Timer struct {
	clock    Clock
	deadline time.Time
}

func NewTimer(clock Clock) *Timer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Timer{clock: clock}
}

// Start (re)loads the timer
func (t *Timer) Start(timeout time.Duration) {
	t.deadline = t.clock.Now().Add(timeout)
}

func (t *Timer) Expired() bool {
	return !t.clock.Now().Before(t.deadline)
}
