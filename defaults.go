package redisflight

import "time"

const (
	// DefaultLockOccupy is the lifetime callers typically give a lock record.
	DefaultLockOccupy = 3 * time.Second
	// DefaultLockPoll is used when Lock is called with a non-positive poll.
	DefaultLockPoll = 50 * time.Millisecond

	// DefaultWaitInterval and DefaultWaitAttempts bound how long a caller that
	// lost the compute race polls for the winner's value.
	DefaultWaitInterval = 100 * time.Millisecond
	DefaultWaitAttempts = 12

	// DefaultComputeLockTTL is the store TTL of a compute-lock record.
	// computeLockHold is the logical expiry written into its value.
	DefaultComputeLockTTL = 5 * time.Second
	computeLockHold       = 3 * time.Second

	defaultReleaseTimeout = 2 * time.Second
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
