package redisflight

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/unkn0wn-root/redisflight/config"
)

func testConfig(t *testing.T, mr *miniredis.Miniredis) config.Config {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return config.Config{
		Host:           mr.Host(),
		Port:           port,
		Prefix:         "app:",
		PoolSize:       4,
		ConnectTimeout: time.Second,
	}
}

func newTestClient(t *testing.T, mr *miniredis.Miniredis, opts Options) *Client {
	t.Helper()
	c, err := New(testConfig(t, mr), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// recHooks counts events by name.
type recHooks struct {
	mu     sync.Mutex
	counts map[string]int
	keys   map[string][]string
}

func newRecHooks() *recHooks {
	return &recHooks{counts: map[string]int{}, keys: map[string][]string{}}
}

func (h *recHooks) rec(ev, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[ev]++
	h.keys[ev] = append(h.keys[ev], key)
}

func (h *recHooks) count(ev string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[ev]
}

func (h *recHooks) LockAcquired(k string, _ time.Duration) { h.rec("lock_acquired", k) }
func (h *recHooks) LockReleased(k string, owned bool) {
	h.rec("lock_released:"+strconv.FormatBool(owned), k)
}
func (h *recHooks) StaleLockReclaimed(k string, _ time.Duration) { h.rec("stale_reclaimed", k) }
func (h *recHooks) ComputeStarted(k string)                      { h.rec("compute_started", k) }
func (h *recHooks) ComputeSkippedEmpty(k string)                 { h.rec("compute_empty", k) }
func (h *recHooks) StampedeTimeout(k string, _ time.Duration)    { h.rec("stampede_timeout", k) }
func (h *recHooks) CacheSetError(k string, _ error)              { h.rec("cache_set_error", k) }
func (h *recHooks) LockReleaseError(k string, _ error)           { h.rec("lock_release_error", k) }
func (h *recHooks) HandleDiscarded(r string)                     { h.rec("discarded", r) }

// memNear is a map-backed nearcache.Provider.
type memNear struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemNear() *memNear { return &memNear{m: map[string][]byte{}} }

func (n *memNear) Get(_ context.Context, k string) ([]byte, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	b, ok := n.m[k]
	return b, ok, nil
}

func (n *memNear) Set(_ context.Context, k string, v []byte, _ time.Duration) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.m[k] = append([]byte(nil), v...)
	return true, nil
}

func (n *memNear) Del(_ context.Context, k string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.m, k)
	return nil
}

func (n *memNear) Close(context.Context) error { return nil }

// eventually polls cond until it holds or d elapses.
func eventually(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", d)
}
