// Package sloghooks turns hook events into log/slog records. Routine lock
// events are sampled; failures are always logged. Keys are redacted by
// default since cache keys often embed user identifiers.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/redisflight"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	LockEvery    uint64
	ComputeEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	lockCtr    atomic.Uint64
	computeCtr atomic.Uint64
}

var _ redisflight.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) LockAcquired(key string, waited time.Duration) {
	if h.l == nil || !sample(h.opts.LockEvery, &h.lockCtr) {
		return
	}
	h.l.Debug("redisflight.lock_acquired", "key", h.redact(key), "waited", waited)
}

func (h *Hooks) LockReleased(key string, owned bool) {
	if h.l == nil {
		return
	}
	if !owned {
		h.l.Warn("redisflight.lock_lost", "key", h.redact(key))
		return
	}
	if sample(h.opts.LockEvery, &h.lockCtr) {
		h.l.Debug("redisflight.lock_released", "key", h.redact(key))
	}
}

func (h *Hooks) StaleLockReclaimed(key string, expiredFor time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("redisflight.stale_lock_reclaimed", "key", h.redact(key), "expired_for", expiredFor)
}

func (h *Hooks) ComputeStarted(key string) {
	if h.l == nil || !sample(h.opts.ComputeEvery, &h.computeCtr) {
		return
	}
	h.l.Debug("redisflight.compute_started", "key", h.redact(key))
}

func (h *Hooks) ComputeSkippedEmpty(key string) {
	if h.l == nil || !sample(h.opts.ComputeEvery, &h.computeCtr) {
		return
	}
	h.l.Info("redisflight.compute_empty", "key", h.redact(key))
}

func (h *Hooks) StampedeTimeout(key string, waited time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("redisflight.stampede_timeout", "key", h.redact(key), "waited", waited)
}

func (h *Hooks) CacheSetError(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("redisflight.cache_set_error", "key", h.redact(key), "err", err)
}

func (h *Hooks) LockReleaseError(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("redisflight.lock_release_error", "key", h.redact(key), "err", err)
}

func (h *Hooks) HandleDiscarded(reason string) {
	if h.l == nil {
		return
	}
	h.l.Debug("redisflight.handle_discarded", "reason", reason)
}
