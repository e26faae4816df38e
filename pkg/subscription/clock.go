package subscription

import "sync/atomic"

// Clock is a monotonic logical clock stamping snapshot revisions.
// Safe for concurrent use, each Next call returns a unique increasing value.
type Clock struct {
	seq atomic.Int64
}

// NewClock makes a clock starting at 0
func NewClock() *Clock {
	return &Clock{}
}

// Next increments the clock and returns the new value
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued value without incrementing
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
