package pkg

import "go.uber.org/atomic"

// Stats is a snapshot of process-wide transaction counters. Nested frames
// are not counted; a retried transaction counts once per attempt.
type Stats struct {
	Started           uint64
	Committed         uint64
	Conflicts         uint64
	ReadOnlyStarted   uint64
	ReadOnlyCommitted uint64
}

var stats struct {
	started           atomic.Uint64
	committed         atomic.Uint64
	conflicts         atomic.Uint64
	readOnlyStarted   atomic.Uint64
	readOnlyCommitted atomic.Uint64
}

// StatsSnapshot retrieves current counter values.
func StatsSnapshot() Stats {
	return Stats{
		Started:           stats.started.Load(),
		Committed:         stats.committed.Load(),
		Conflicts:         stats.conflicts.Load(),
		ReadOnlyStarted:   stats.readOnlyStarted.Load(),
		ReadOnlyCommitted: stats.readOnlyCommitted.Load(),
	}
}
