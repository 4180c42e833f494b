// Package nearcache defines the optional in-process L1 consulted by the
// single-flight cache before it reads the shared store.
//
// A near cache only ever holds bytes that were read from, or written to, the
// shared store. It trades freshness for round-trips: an entry deleted from the
// store stays visible locally until it expires or Forget drops it.
package nearcache

import (
	"context"
	"time"
)

// Provider is a byte cache with TTLs, safe for concurrent use.
// Get must return exactly the bytes passed to Set.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set may drop the write under memory pressure and report ok=false.
	// ttl <= 0 lets the provider pick its own lifetime.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)
	Del(ctx context.Context, key string) error
	Close(ctx context.Context) error
}
