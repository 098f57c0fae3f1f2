package testutil

import "sync"

// DefaultEpoch is the Unix time DeterministicClock starts from when none is
// given: 2024-01-01T00:00:00Z.
const DefaultEpoch int64 = 1704067200

// DeterministicClock is a thread-safe clock for tests that advances one
// second per reading.
//
// It satisfies engine.Clock. The same sequence of calls yields the same
// timestamps, so revisions and conflicts get stable CreatedAt values in
// golden snapshots.
type DeterministicClock struct {
	mu    sync.Mutex
	epoch int64
	ticks int64
}

// NewDeterministicClock creates a clock starting at epoch. Zero selects
// DefaultEpoch. The first call to Now() returns epoch+1.
func NewDeterministicClock(epoch int64) *DeterministicClock {
	if epoch == 0 {
		epoch = DefaultEpoch
	}
	return &DeterministicClock{epoch: epoch}
}

// Now advances the clock by one second and returns the new Unix time.
func (c *DeterministicClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.epoch + c.ticks
}

// Current returns the last time handed out, or the epoch if Now has not
// been called.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch + c.ticks
}

// Reset rewinds the clock to its epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
