package redisflight

import (
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/redisflight/pool"
	"github.com/unkn0wn-root/redisflight/store"
)

// ConnectionError reports a failed dial, AUTH or SELECT.
type ConnectionError = store.ConnectionError

var (
	ErrPoolExhausted = pool.ErrExhausted
	ErrPoolClosed    = pool.ErrClosed

	// ErrLockTimeout is returned by Lock when the context deadline passes
	// before the lock was obtained. The error also matches context.DeadlineExceeded.
	ErrLockTimeout = errors.New("redisflight: timed out waiting for lock")
	// ErrNotOwner means the lock record no longer carries the lease token:
	// it expired and was reclaimed, or someone force-unlocked it.
	ErrNotOwner = errors.New("redisflight: lock is not held by this lease")
	// ErrStampedeTimeout is matched by every *StampedeError.
	ErrStampedeTimeout = errors.New("redisflight: gave up waiting for another caller to fill the cache")

	// ErrInvalidTTL: negative for cache ttls, non-positive for lock occupy and Expire.
	ErrInvalidTTL        = errors.New("redisflight: ttl out of range")
	ErrEmptyKey          = errors.New("redisflight: key is empty")
	ErrNilCompute        = errors.New("redisflight: compute function is nil")
	ErrUnknownConnection = errors.New("redisflight: unknown connection")
	ErrClosed            = errors.New("redisflight: manager closed")
)

// StampedeError is returned to a caller that lost the race to compute a key
// and did not see the winner's value within the wait budget.
type StampedeError struct {
	Key      string
	Attempts int
	Waited   time.Duration
}

func (e *StampedeError) Error() string {
	return fmt.Sprintf("redisflight: %q still missing after %d polls (%s)", e.Key, e.Attempts, e.Waited)
}

func (e *StampedeError) Is(target error) bool { return target == ErrStampedeTimeout }

// SerializationError wraps a codec failure for a cache entry.
// Op is "encode" or "decode".
type SerializationError struct {
	Key string
	Op  string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("redisflight: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
