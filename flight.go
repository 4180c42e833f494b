package redisflight

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/redisflight/codec"
	"github.com/unkn0wn-root/redisflight/internal/util"
	"github.com/unkn0wn-root/redisflight/nearcache"
	"github.com/unkn0wn-root/redisflight/store"
)

// ComputeFunc produces the value for a missing key. Calling setTTL overrides
// the ttl passed to GetOrCompute for this value.
//
// ctx is detached from the caller that started the computation, so it is not
// cancelled when that caller gives up. It is bounded by
// FlightOptions.ComputeTimeout only; with no timeout a compute that never
// returns keeps every later caller for the key in this process waiting until
// its own context ends.
type ComputeFunc[V any] func(ctx context.Context, setTTL func(time.Duration)) (V, error)

// FlightOptions tune a Flight. All fields are optional.
type FlightOptions[V any] struct {
	Codec codec.Codec[V] // default codec.JSON[V]

	// IsEmpty reports values that must not be cached. The default treats nil
	// (including nil maps and slices), false and "" as empty; a non-nil empty
	// map or slice is a real "no results" value and is cached.
	IsEmpty func(V) bool

	WaitInterval   time.Duration // 0 => DefaultWaitInterval
	WaitAttempts   int           // 0 => DefaultWaitAttempts
	ComputeLockTTL time.Duration // 0 => DefaultComputeLockTTL
	ComputeTimeout time.Duration // 0 => unbounded

	// Near is an optional in-process cache checked before the store.
	Near nearcache.Provider
	// NearTTL bounds how long a near entry may lag the store. With 0, values
	// this process computed are kept for their cache ttl and values read from
	// the store are not kept at all.
	NearTTL time.Duration
}

// Flight computes each missing key once across every process sharing the
// store. In-process callers are coalesced first; the coalesced leader then
// competes for a compute-lock record in the store. The winner computes and
// writes, everyone else polls for the written value.
type Flight[V any] struct {
	c     *Client
	codec codec.Codec[V]

	isEmpty      func(V) bool
	waitInterval time.Duration
	waitAttempts int
	lockTTL      time.Duration
	computeTO    time.Duration
	near         nearcache.Provider
	nearTTL      time.Duration

	sf singleflight.Group
}

func NewFlight[V any](c *Client, opts FlightOptions[V]) (*Flight[V], error) {
	if c == nil {
		return nil, fmt.Errorf("redisflight: client is required")
	}
	if opts.WaitInterval < 0 || opts.WaitAttempts < 0 || opts.ComputeLockTTL < 0 || opts.ComputeTimeout < 0 || opts.NearTTL < 0 {
		return nil, fmt.Errorf("redisflight: flight options must not be negative")
	}
	return newFlight(c, opts), nil
}

func newFlight[V any](c *Client, opts FlightOptions[V]) *Flight[V] {
	f := &Flight[V]{
		c:            c,
		codec:        opts.Codec,
		isEmpty:      opts.IsEmpty,
		waitInterval: coalesce(opts.WaitInterval, DefaultWaitInterval),
		waitAttempts: coalesce(opts.WaitAttempts, DefaultWaitAttempts),
		lockTTL:      coalesce(opts.ComputeLockTTL, DefaultComputeLockTTL),
		computeTO:    opts.ComputeTimeout,
		near:         opts.Near,
		nearTTL:      opts.NearTTL,
	}
	if f.codec == nil {
		f.codec = codec.JSON[V]{}
	}
	if f.isEmpty == nil {
		f.isEmpty = func(v V) bool { return isEmptyValue(v) }
	}
	return f
}

// GetOrCompute is Flight.GetOrCompute on the client's shared JSON flight for V.
func GetOrCompute[V any](ctx context.Context, c *Client, key string, compute ComputeFunc[V], ttl time.Duration) (V, error) {
	return defaultFlight[V](c).GetOrCompute(ctx, key, compute, ttl)
}

// GetOrCompute returns the cached value for key or computes, caches and
// returns it. ttl 0 caches without expiry. Empty values are returned but not
// cached, so the next call computes again.
//
// A caller that loses the compute race and does not see a value within
// WaitInterval*WaitAttempts gets a *StampedeError; it never computes itself.
func (f *Flight[V]) GetOrCompute(ctx context.Context, key string, compute ComputeFunc[V], ttl time.Duration) (V, error) {
	var zero V
	if key == "" {
		return zero, ErrEmptyKey
	}
	if compute == nil {
		return zero, ErrNilCompute
	}
	if ttl < 0 {
		return zero, ErrInvalidTTL
	}
	k := f.c.Namespaced(key)

	if v, ok := f.nearGet(ctx, k); ok {
		return v, nil
	}
	v, ok, err := f.read(ctx, k)
	if err != nil || ok {
		return v, err
	}

	// the shared computation must not die with whichever caller started it
	ch := f.sf.DoChan(k, func() (any, error) {
		return f.fill(context.WithoutCancel(ctx), k, compute, ttl)
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		v, _ := r.Val.(V)
		return v, r.Err
	}
}

// Forget drops key from the store and the near cache.
func (f *Flight[V]) Forget(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	k := f.c.Namespaced(key)
	f.sf.Forget(k)
	if f.near != nil {
		_ = f.near.Del(ctx, k)
	}
	_, err := f.c.Delete(ctx, k)
	return err
}

func (f *Flight[V]) fill(ctx context.Context, k string, compute ComputeFunc[V], ttl time.Duration) (V, error) {
	var zero V

	// a caller coalesced behind a previous flight may arrive after the write
	if v, ok, err := f.read(ctx, k); err != nil || ok {
		return v, err
	}

	lockKey := util.ComputeLockKey(f.c.prefix, k)
	lockVal := lockValue(f.c.now().Add(computeLockHold), uuid.NewString())
	var won bool
	err := f.c.do(ctx, func(h store.Handle) (err error) {
		won, err = h.SetNX(ctx, lockKey, lockVal, f.lockTTL)
		return err
	})
	if err != nil {
		return zero, err
	}
	if !won {
		return f.await(ctx, k)
	}
	defer f.releaseComputeLock(ctx, lockKey, lockVal)

	f.c.hooks.ComputeStarted(k)
	v, err := f.runCompute(ctx, compute, &ttl)
	if err != nil {
		return zero, err
	}
	if f.isEmpty(v) {
		f.c.hooks.ComputeSkippedEmpty(k)
		f.c.log.Debug("computed value is empty; not cached", Fields{"key": k})
		return v, nil
	}
	if ttl < 0 {
		return v, fmt.Errorf("%w: compute set %s for %q", ErrInvalidTTL, ttl, k)
	}

	raw, err := f.codec.Encode(v)
	if err != nil {
		return zero, &SerializationError{Key: k, Op: "encode", Err: err}
	}
	err = f.c.do(ctx, func(h store.Handle) error {
		return h.Set(ctx, k, raw, ttl)
	})
	if err != nil {
		f.c.hooks.CacheSetError(k, err)
		f.c.log.Error("cache write failed", Fields{"key": k, "err": err})
		return v, fmt.Errorf("redisflight: write %q: %w", k, err)
	}
	f.nearSet(ctx, k, raw, coalesce(f.nearTTL, ttl))
	return v, nil
}

func (f *Flight[V]) runCompute(ctx context.Context, compute ComputeFunc[V], ttl *time.Duration) (V, error) {
	if f.computeTO > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.computeTO)
		defer cancel()
	}
	return compute(ctx, func(d time.Duration) { *ttl = d })
}

// await polls for the value written by the caller holding the compute lock.
func (f *Flight[V]) await(ctx context.Context, k string) (V, error) {
	var zero V
	start := f.c.now()

	t := time.NewTimer(f.waitInterval)
	defer t.Stop()
	for i := 0; i < f.waitAttempts; i++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-t.C:
		}
		v, ok, err := f.read(ctx, k)
		if err != nil || ok {
			return v, err
		}
		t.Reset(f.waitInterval)
	}

	waited := f.c.now().Sub(start)
	f.c.hooks.StampedeTimeout(k, waited)
	f.c.log.Warn("gave up waiting for cache fill", Fields{"key": k, "attempts": f.waitAttempts, "waited": waited})
	return zero, &StampedeError{Key: k, Attempts: f.waitAttempts, Waited: waited}
}

// read returns ok=false on miss. An empty stored payload counts as a miss.
func (f *Flight[V]) read(ctx context.Context, k string) (V, bool, error) {
	var zero V
	var (
		raw []byte
		ok  bool
	)
	err := f.c.do(ctx, func(h store.Handle) (err error) {
		raw, ok, err = h.Get(ctx, k)
		return err
	})
	if err != nil || !ok || len(raw) == 0 {
		return zero, false, err
	}
	v, err := f.codec.Decode(raw)
	if err != nil {
		return zero, false, &SerializationError{Key: k, Op: "decode", Err: err}
	}
	// the remaining store TTL is unknown here, so only a fixed NearTTL applies
	if f.nearTTL > 0 {
		f.nearSet(ctx, k, raw, f.nearTTL)
	}
	return v, true, nil
}

func (f *Flight[V]) releaseComputeLock(ctx context.Context, lockKey string, val []byte) {
	rctx, cancel := f.c.detached(ctx)
	defer cancel()
	err := f.c.do(rctx, func(h store.Handle) error {
		_, err := h.CompareAndDelete(rctx, lockKey, val)
		return err
	})
	if err != nil {
		f.c.hooks.LockReleaseError(lockKey, err)
		f.c.log.Warn("compute lock not released; it will expire", Fields{"key": lockKey, "err": err})
	}
}

func (f *Flight[V]) nearGet(ctx context.Context, k string) (V, bool) {
	var zero V
	if f.near == nil {
		return zero, false
	}
	raw, ok, err := f.near.Get(ctx, k)
	if err != nil || !ok {
		return zero, false
	}
	v, err := f.codec.Decode(raw)
	if err != nil {
		_ = f.near.Del(ctx, k)
		return zero, false
	}
	return v, true
}

func (f *Flight[V]) nearSet(ctx context.Context, k string, raw []byte, ttl time.Duration) {
	if f.near == nil {
		return
	}
	if ok, err := f.near.Set(ctx, k, raw, ttl); err != nil || !ok {
		f.c.log.Debug("near cache rejected entry", Fields{"key": k, "err": err})
	}
}

func isEmptyValue(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Pointer, reflect.Interface, reflect.Chan, reflect.Func, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
