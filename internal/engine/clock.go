package engine

import "sync/atomic"

// Clock numbers outer calls. Every outer call takes the next number; it is
// logged as "seq" and orders the records of concurrent calls, which wall
// time cannot. Nested calls run inside their outer call's number.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first call number is 1.
func NewClock() *Clock {
	return &Clock{}
}

// ResumeClock returns a clock whose first call number follows last. A
// runtime appending to an existing run log resumes after the log's last
// seq so that logged call numbers and run-log rows line up.
func ResumeClock(last int64) *Clock {
	c := &Clock{}
	c.last.Store(last)
	return c
}

// Next hands out the next call number.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Last returns the most recent call number, or the resume point if none
// was handed out yet.
func (c *Clock) Last() int64 {
	return c.last.Load()
}
