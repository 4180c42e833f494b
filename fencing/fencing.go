// Package fencing issues strictly increasing tokens per lock name.
//
// A holder attaches its token to every write it performs while holding the
// lock; the protected resource rejects writes carrying a token lower than the
// highest it has seen. This closes the window in which a holder that outlived
// its lock TTL keeps writing after a successor acquired the lock.
package fencing

import (
	"context"
	"time"
)

// Store abstracts where fencing counters live.
// Use Local for a single process, Redis when lock holders span processes.
type Store interface {
	// Next atomically increments and returns the token for name.
	Next(ctx context.Context, name string) (uint64, error)
	// Current returns the last issued token; names never issued return 0.
	Current(ctx context.Context, name string) (uint64, error)
	// Cleanup prunes counters untouched for longer than retention (no-op for Redis).
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
