package core

import (
	"sync"
	"time"
)

// Clock issues the logical timestamps stamped on every room write.
// Wall-clock milliseconds, bumped by one when two calls land in the same
// millisecond, so a writer's stamps strictly increase.
type Clock struct {
	mu   sync.Mutex
	last int64
}

func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
	return now
}

// Observe folds a stamp seen in storage into the clock, so the next Now
// is strictly greater than any record this client has read. Keeps the
// per-room invariant even when device clocks drift.
func (c *Clock) Observe(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t > c.last {
		c.last = t
	}
}
