// Package testutil provides deterministic test fixtures shared across
// packages.
package testutil

import (
	"sync"
	"time"
)

// FakeClock is a thread-safe manual time source for tests.
//
// Its Now method satisfies the clock hooks used by time-dependent
// components, so a test can hand out FakeClock.Now and then move time
// forward explicitly instead of sleeping.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFakeClock creates a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{t: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d. Negative d is ignored so the
// clock stays monotonic.
func (c *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Set jumps the clock to t if t is not earlier than the current time.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.t) {
		return
	}
	c.t = t
}
