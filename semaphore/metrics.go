package semaphore

import (
	"sync/atomic"
)

// Metrics holds counters describing the lifetime activity of a Semaphore. The
// fields are updated atomically and may be read at any time; the values are
// snapshots and can be stale by the time they are used.
//
// The prometheuscollector package exports these counters for Prometheus.
type Metrics struct {
	// Acquired counts permits handed out, through either the fast path or a
	// queue handoff.
	Acquired atomic.Uint64
	// HandedOff counts releases that passed the slot directly to a queued waiter
	// instead of returning it to the counter.
	HandedOff atomic.Uint64
	// NoPermits counts TryAcquire calls that failed with ErrNoPermits.
	NoPermits atomic.Uint64
	// Rejected counts acquire attempts that failed with ErrClosed.
	Rejected atomic.Uint64
	// Cancelled counts acquisitions abandoned while queued.
	Cancelled atomic.Uint64
	// OverReleased counts releases dropped because the counter was already at
	// capacity.
	OverReleased atomic.Uint64
}
