// Package testutil provides shared test doubles.
package testutil

import (
	"sync"
	"time"
)

// Clock is a settable wall clock for tests.
//
// Its Now method can be handed to the engine so rollover scenarios run
// against scripted time instead of the real clock.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClockAt creates a clock frozen at t.
func NewClockAt(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current scripted time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
