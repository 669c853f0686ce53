package ports

import "time"

// TimerHandle identifies a scheduled callback. The zero value is never issued.
type TimerHandle uint64

// Scheduler is the host's timer service. All callbacks run on the host's
// single executor, never concurrently with each other.
type Scheduler interface {
	// Schedule runs fn once after d.
	Schedule(d time.Duration, fn func()) TimerHandle
	// Cancel drops a pending callback. Unknown or fired handles are ignored.
	Cancel(h TimerHandle)
	// NextTick runs fn on the following tick.
	NextTick(fn func())
	Now() time.Time
}
