package engine

import "sync/atomic"

// Clock is the monotonic tick counter for one run.
//
// Every step attempt is stamped with a strictly increasing tick from this
// clock, including attempts that fail or are skipped. This ensures:
//   - Deterministic ordering (no wall-clock race conditions)
//   - Ledger entries and violations share one contiguous sequence
//   - Replay verification can check for gaps
//
// Thread-safety: Clock uses atomic operations, though the interpreter's
// single-threaded design means only one goroutine calls Next() per run.
type Clock struct {
	tick atomic.Int64
}

// NewClock creates a clock starting at 0; the first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next tick and advances the clock.
func (c *Clock) Next() int64 {
	return c.tick.Add(1)
}

// Current returns the current tick without advancing.
func (c *Clock) Current() int64 {
	return c.tick.Load()
}
