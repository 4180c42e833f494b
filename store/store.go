// Package store defines the backing-store handle consumed by the pool, the lock
// and the single-flight cache, plus its Redis implementation.
//
// A Handle is one logical connection. It is not namespaced: callers pass
// physical keys. Handles are owned by a pool and used by one goroutine at a time.
package store

import (
	"context"
	"fmt"
	"time"
)

// Handle is the set of store primitives the coordination layer relies on.
type Handle interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX writes value only if key is absent; the check and write are atomic.
	// ttl > 0 attaches an expiry in the same command.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Expire sets a TTL on an existing key; false if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns the remaining lifetime. exists=false for missing keys;
	// ttl=0 with exists=true means the key has no expiry.
	TTL(ctx context.Context, key string) (ttl time.Duration, exists bool, err error)
	// Exists counts how many of keys are present.
	Exists(ctx context.Context, keys ...string) (int64, error)
	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)
	// CompareAndDelete removes key only while it still holds expected.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)
	// Scan lists keys matching a glob pattern without blocking the server.
	Scan(ctx context.Context, match string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Dialer opens a new Handle.
type Dialer func(ctx context.Context) (Handle, error)

// ConnectionError is returned when a handle could not be established
// (network failure, authentication, database selection).
type ConnectionError struct {
	Addr     string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("store: connect %s failed after %d attempts: %v", e.Addr, e.Attempts, e.Err)
	}
	return fmt.Sprintf("store: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
