package engine

import "sync/atomic"

// Clock is the monotonic logical clock that hands out transaction epochs.
//
// Every transaction is stamped with a strictly increasing epoch. Guards and
// proxies carry the epoch of the transaction they were derived from, so a
// reference that outlives its transaction is detected by comparison rather
// than by tracking every outstanding proxy.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific epoch.
// Used when an engine must not reuse epochs already handed out, e.g. in
// tests that pin journal contents.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next epoch and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last epoch handed out without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
