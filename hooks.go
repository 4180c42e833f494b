package redisflight

import "time"

// Hooks receives high-signal lock and cache events.
// Implementations MUST be cheap and non-blocking; they run inline on the
// lock and cache paths. Wrap slow sinks with hooks/async.
//
// Keys are physical (namespaced) store keys.
type Hooks interface {
	// Lock record written; waited is the time spent in Lock (0 for TryLock).
	LockAcquired(key string, waited time.Duration)
	// Unlock finished. owned=false means the record carried another token.
	LockReleased(key string, owned bool)
	// An expired record left by a crashed holder was removed.
	StaleLockReclaimed(key string, expiredFor time.Duration)

	// This process won the compute lock for a cache key.
	ComputeStarted(key string)
	// The computed value was empty and was not written.
	ComputeSkippedEmpty(key string)
	// A waiting caller gave up; see StampedeError.
	StampedeTimeout(key string, waited time.Duration)
	// Writing the computed value failed.
	CacheSetError(key string, err error)
	// Removing a compute lock failed; the record will expire on its own.
	LockReleaseError(key string, err error)

	// The pool closed a handle instead of reusing it.
	// reason ∈ {"idle_expired", "pool_closed", "broken"}
	HandleDiscarded(reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) LockAcquired(string, time.Duration)       {}
func (NopHooks) LockReleased(string, bool)                {}
func (NopHooks) StaleLockReclaimed(string, time.Duration) {}
func (NopHooks) ComputeStarted(string)                    {}
func (NopHooks) ComputeSkippedEmpty(string)               {}
func (NopHooks) StampedeTimeout(string, time.Duration)    {}
func (NopHooks) CacheSetError(string, error)              {}
func (NopHooks) LockReleaseError(string, error)           {}
func (NopHooks) HandleDiscarded(string)                   {}
