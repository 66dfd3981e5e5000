package engine

import "github.com/roach88/ecmc/internal/simtime"

// Clock stamps committed events with a sequence number and tracks the
// simulation time of the last one.
//
// Consecutive events may share a simulation time; they never share a
// sequence number. Recorders key events by sequence number.
type Clock struct {
	seq  int64
	last simtime.Time
}

// NewClock creates a clock that has stamped nothing yet.
func NewClock() *Clock {
	return &Clock{}
}

// Stamp returns the sequence number of an event committed at t. The first
// event gets 1. backwards reports that t precedes the previous event, which
// only rounding in a displacement computation produces.
func (c *Clock) Stamp(t simtime.Time) (seq int64, backwards bool) {
	backwards = c.seq > 0 && t.Less(c.last)
	c.seq++
	c.last = t
	return c.seq, backwards
}

// Seq is the sequence number of the last stamped event, 0 before the first.
func (c *Clock) Seq() int64 {
	return c.seq
}

// Last is the time of the last stamped event.
func (c *Clock) Last() simtime.Time {
	return c.last
}
