// Package policy holds the pure access checks shared by login and session verification:
// the client IP allow-list and the business-hours window.
package policy

import (
	"sync"
	"time"
)

// Clock supplies the current instant. Every policy decision reads time through a Clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T until moved with Set. Used by tests and tooling.
// Safe for concurrent use once constructed.
type FixedClock struct {
	mu sync.RWMutex
	T  time.Time
}

// Now returns the fixed instant.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.T
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.T = t
	c.mu.Unlock()
}
