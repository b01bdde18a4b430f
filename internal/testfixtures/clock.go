package testfixtures

import (
	"sync"
	"time"
)

// Clock is a settable time source shared by the services under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts the clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

// Now returns the instant the clock currently points at.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns Now as an injectable func. A nil clock falls back to time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance adds d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// AdvanceWeeks moves forward by whole calendar weeks in loc. The local wall
// time is kept, so a week that crosses a DST change is not 168 hours long.
func (c *Clock) AdvanceWeeks(weeks int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.In(loc).AddDate(0, 0, 7*weeks)
	return c.now
}
