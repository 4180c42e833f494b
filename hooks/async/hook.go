// Package asynchook moves hook delivery off the lock and cache paths.
// Events are queued to a fixed set of workers; when the queue is full the
// event is dropped and counted, never blocking the caller.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{LockEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000)
//	defer hooks.Close()
//
//	c, _ := redisflight.New(cfg, redisflight.Options{Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/redisflight"
)

type Hooks struct {
	inner   redisflight.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ redisflight.Hooks = (*Hooks)(nil)

func New(inner redisflight.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close delivers queued events and stops the workers. Events raised after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) LockAcquired(k string, w time.Duration) { h.try(func() { h.inner.LockAcquired(k, w) }) }
func (h *Hooks) LockReleased(k string, owned bool)      { h.try(func() { h.inner.LockReleased(k, owned) }) }
func (h *Hooks) StaleLockReclaimed(k string, d time.Duration) {
	h.try(func() { h.inner.StaleLockReclaimed(k, d) })
}
func (h *Hooks) ComputeStarted(k string)      { h.try(func() { h.inner.ComputeStarted(k) }) }
func (h *Hooks) ComputeSkippedEmpty(k string) { h.try(func() { h.inner.ComputeSkippedEmpty(k) }) }
func (h *Hooks) StampedeTimeout(k string, w time.Duration) {
	h.try(func() { h.inner.StampedeTimeout(k, w) })
}
func (h *Hooks) CacheSetError(k string, err error) { h.try(func() { h.inner.CacheSetError(k, err) }) }
func (h *Hooks) LockReleaseError(k string, err error) {
	h.try(func() { h.inner.LockReleaseError(k, err) })
}
func (h *Hooks) HandleDiscarded(r string) { h.try(func() { h.inner.HandleDiscarded(r) }) }
