package testutil

import (
	"sync"
	"time"
)

// FixedClock provides deterministic, thread-safe timestamps for tests.
//
// Each call to Now returns the current time and then advances it by the
// configured step. A zero step returns the same instant forever.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
}

// NewFixedClock creates a clock whose first Now() returns start.
func NewFixedClock(start time.Time, step time.Duration) *FixedClock {
	return &FixedClock{start: start, now: start, step: step}
}

// Now returns the current time and advances the clock by one step.
// Its signature matches time.Now so it can be passed as a clock function.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Current returns the time the next Now() will return, without advancing.
func (c *FixedClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start time.
func (c *FixedClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
