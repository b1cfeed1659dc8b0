package engine

import "sync/atomic"

// TickClock counts simulation ticks, frozen while paused
// The tick loop is the only writer; readers on other goroutines use atomics
type TickClock struct {
	tick        atomic.Uint64
	pausedTicks atomic.Uint64 // Loop iterations spent paused, for diagnostics
	isPaused    atomic.Bool
}

// Now returns the current tick
func (c *TickClock) Now() uint64 { return c.tick.Load() }

// Pause stops tick advancement, returns true on a state change
func (c *TickClock) Pause() bool { return c.isPaused.CompareAndSwap(false, true) }

// Resume continues tick advancement, returns true on a state change
func (c *TickClock) Resume() bool { return c.isPaused.CompareAndSwap(true, false) }

// IsPaused returns current pause state
func (c *TickClock) IsPaused() bool { return c.isPaused.Load() }

// Advance moves one tick forward unless paused and returns the tick it left
func (c *TickClock) Advance() (uint64, bool) {
	if c.isPaused.Load() {
		c.pausedTicks.Add(1)
		return c.tick.Load(), false
	}
	return c.tick.Add(1) - 1, true
}

// PausedTicks returns the number of Advance calls made while paused
func (c *TickClock) PausedTicks() uint64 { return c.pausedTicks.Load() }
