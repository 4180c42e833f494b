// Package pool keeps a bounded set of store handles and hands them out to one
// caller at a time.
//
// Handles are dialed lazily up to Size. A handle that sat idle longer than
// IdleTimeout is closed and replaced on the next Acquire, which guards against
// servers that drop idle connections.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/redisflight/store"
)

var (
	ErrExhausted = errors.New("pool: no handle became available within the wait time")
	ErrClosed    = errors.New("pool: closed")
)

// Discard reasons passed to Options.OnDiscard.
const (
	DiscardIdle   = "idle_expired"
	DiscardClosed = "pool_closed"
	DiscardBroken = "broken"
)

// Options tune the pool. Only Size is required.
type Options struct {
	Size int
	// AcquireTimeout bounds the wait for a free slot; 0 waits until ctx is done.
	AcquireTimeout time.Duration
	// IdleTimeout discards handles unused for longer than this; 0 disables.
	IdleTimeout time.Duration
	// OnDiscard is called (outside the pool lock) whenever a handle is closed
	// by the pool rather than reused.
	OnDiscard func(reason string)
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Size      int
	Open      int
	Idle      int
	InUse     int
	Dials     uint64
	Waits     uint64
	Timeouts  uint64
	Discarded uint64
}

type entry struct {
	h        store.Handle
	lastUsed time.Time
}

// Pool is safe for concurrent use.
type Pool struct {
	dial store.Dialer
	opts Options
	now  func() time.Time

	// a send occupies a slot; len(slots) is the number of checked-out handles
	slots chan struct{}
	done  chan struct{}

	mu     sync.Mutex
	idle   []*entry
	open   int
	closed bool

	closeOnce sync.Once

	dials     atomic.Uint64
	waits     atomic.Uint64
	timeouts  atomic.Uint64
	discarded atomic.Uint64
}

// New builds a pool; no handle is dialed until the first Acquire.
func New(dial store.Dialer, opts Options) (*Pool, error) {
	if dial == nil {
		return nil, errors.New("pool: dialer is required")
	}
	if opts.Size <= 0 {
		return nil, errors.New("pool: size must be positive")
	}
	if opts.AcquireTimeout < 0 || opts.IdleTimeout < 0 {
		return nil, errors.New("pool: timeouts must not be negative")
	}
	return &Pool{
		dial:  dial,
		opts:  opts,
		now:   time.Now,
		slots: make(chan struct{}, opts.Size),
		done:  make(chan struct{}),
	}, nil
}

// Acquire checks out a handle. The returned Conn must be released exactly once.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	if err := p.takeSlot(ctx); err != nil {
		return nil, err
	}

	e, stale, err := p.popIdle()
	p.closeDiscarded(stale, DiscardIdle)
	if err != nil {
		p.freeSlot()
		return nil, err
	}
	if e != nil {
		return &Conn{Handle: e.h, pool: p, e: e, lastUsed: e.lastUsed}, nil
	}

	h, err := p.dial(ctx)
	if err != nil {
		p.mu.Lock()
		p.open--
		p.mu.Unlock()
		p.freeSlot()
		return nil, err
	}
	p.dials.Add(1)
	e = &entry{h: h, lastUsed: p.now()}
	return &Conn{Handle: h, pool: p, e: e, lastUsed: e.lastUsed}, nil
}

// Do runs fn with a checked-out handle and releases it on every exit path.
func (p *Pool) Do(ctx context.Context, fn func(store.Handle) error) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.Release()
	return fn(c.Handle)
}

// Close closes idle handles and makes further Acquire calls fail. Handles that
// are still checked out are closed when released. Safe to call more than once.
func (p *Pool) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		idle := p.idle
		p.idle = nil
		p.open -= len(idle)
		p.mu.Unlock()

		close(p.done)
		for _, e := range idle {
			if err := e.h.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		p.discarded.Add(uint64(len(idle)))
		p.notify(DiscardClosed, len(idle))
	})
	return errors.Join(errs...)
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	open, idle := p.open, len(p.idle)
	p.mu.Unlock()
	return Stats{
		Size:      p.opts.Size,
		Open:      open,
		Idle:      idle,
		InUse:     len(p.slots),
		Dials:     p.dials.Load(),
		Waits:     p.waits.Load(),
		Timeouts:  p.timeouts.Load(),
		Discarded: p.discarded.Load(),
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) takeSlot(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	default:
	}

	p.waits.Add(1)
	var timeout <-chan time.Time
	if p.opts.AcquireTimeout > 0 {
		t := time.NewTimer(p.opts.AcquireTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		p.timeouts.Add(1)
		return ErrExhausted
	}
}

func (p *Pool) freeSlot() { <-p.slots }

// popIdle returns the most recently used live handle, or nil with open
// incremented when the caller must dial. Expired handles are returned for
// closing outside the lock.
func (p *Pool) popIdle() (*entry, []*entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil, ErrClosed
	}
	var stale []*entry
	now := p.now()
	for len(p.idle) > 0 {
		e := p.idle[len(p.idle)-1]
		p.idle[len(p.idle)-1] = nil
		p.idle = p.idle[:len(p.idle)-1]
		if p.opts.IdleTimeout > 0 && now.Sub(e.lastUsed) > p.opts.IdleTimeout {
			p.open--
			stale = append(stale, e)
			continue
		}
		return e, stale, nil
	}
	p.open++
	return nil, stale, nil
}

func (p *Pool) put(e *entry, broken bool) {
	e.lastUsed = p.now()
	p.mu.Lock()
	if p.closed || broken {
		p.open--
		p.mu.Unlock()
		reason := DiscardClosed
		if broken {
			reason = DiscardBroken
		}
		p.closeDiscarded([]*entry{e}, reason)
		p.freeSlot()
		return
	}
	p.idle = append(p.idle, e)
	p.mu.Unlock()
	p.freeSlot()
}

func (p *Pool) closeDiscarded(es []*entry, reason string) {
	if len(es) == 0 {
		return
	}
	for _, e := range es {
		_ = e.h.Close()
	}
	p.discarded.Add(uint64(len(es)))
	p.notify(reason, len(es))
}

func (p *Pool) notify(reason string, n int) {
	if p.opts.OnDiscard == nil {
		return
	}
	for i := 0; i < n; i++ {
		p.opts.OnDiscard(reason)
	}
}

// Conn is a checked-out handle. It embeds the handle so primitives can be
// called directly on it.
type Conn struct {
	store.Handle
	pool     *Pool
	e        *entry
	released atomic.Bool
	// copied at Acquire; e.lastUsed belongs to the pool again after Release
	lastUsed time.Time
}

// Release returns the handle to the pool. Calls after the first are no-ops.
func (c *Conn) Release() {
	if !c.released.CompareAndSwap(false, true) {
		return
	}
	c.pool.put(c.e, false)
}

// Discard closes the handle instead of returning it, e.g. after a protocol
// error left the connection in an unknown state.
func (c *Conn) Discard() {
	if !c.released.CompareAndSwap(false, true) {
		return
	}
	c.pool.put(c.e, true)
}

// LastUsed is when the handle was last returned to the pool before this
// checkout (the dial time for a fresh handle). It stays fixed after Release.
func (c *Conn) LastUsed() time.Time { return c.lastUsed }
