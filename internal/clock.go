package internal

import "go.uber.org/atomic"

// VersionClock represents a global inter-transactional clock. Every
// committing read-write transaction ticks it exactly once and stamps the
// post-increment value onto the variables it publishes.
type VersionClock struct {
	counter atomic.Uint64
}

// Atomically increments clock and retrieves new value.
func (vc *VersionClock) Increment() uint64 {
	return vc.counter.Inc()
}

// Atomically retrieves current clock value.
func (vc *VersionClock) Load() uint64 {
	return vc.counter.Load()
}
