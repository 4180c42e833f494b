package redisflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"sync"
	"time"

	"github.com/unkn0wn-root/redisflight/config"
	"github.com/unkn0wn-root/redisflight/fencing"
	"github.com/unkn0wn-root/redisflight/internal/util"
	"github.com/unkn0wn-root/redisflight/pool"
	"github.com/unkn0wn-root/redisflight/store"
)

// Client is one configured connection: a handle pool plus the lock and
// cache operations built on it. Safe for concurrent use.
type Client struct {
	cfg    config.Config
	prefix string
	pool   *pool.Pool

	log            Logger
	hooks          Hooks
	fence          fencing.Store
	releaseTimeout time.Duration
	now            func() time.Time

	// default flights used by the package-level GetOrCompute, one per value type
	flights sync.Map
}

// New validates cfg and builds the pool. No connection is opened until the
// first operation; use Ping to fail fast.
func New(cfg config.Config, opts Options) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:            cfg,
		prefix:         cfg.Prefix,
		log:            coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:          coalesce[Hooks](opts.Hooks, NopHooks{}),
		fence:          opts.Fencing,
		releaseTimeout: coalesce(opts.ReleaseTimeout, defaultReleaseTimeout),
		now:            time.Now,
	}

	dial := store.NewDialer
	if opts.Dial != nil {
		dial = opts.Dial
	}
	p, err := pool.New(dial(cfg), pool.Options{
		Size:           cfg.PoolSize,
		AcquireTimeout: cfg.AcquireTimeout,
		IdleTimeout:    cfg.PoolWaitTime,
		OnDiscard: func(reason string) {
			c.hooks.HandleDiscarded(reason)
			c.log.Debug("pooled handle discarded", Fields{"addr": cfg.Addr(), "reason": reason})
		},
	})
	if err != nil {
		return nil, fmt.Errorf("redisflight: %w", err)
	}
	c.pool = p
	return c, nil
}

func (c *Client) Config() config.Config { return c.cfg }

// Pool exposes the handle pool, e.g. for Stats.
func (c *Client) Pool() *pool.Pool { return c.pool }

// Acquire checks out a raw handle. Keys passed to it are not namespaced;
// use Namespaced. The caller must Release the returned Conn.
func (c *Client) Acquire(ctx context.Context) (*pool.Conn, error) {
	return c.pool.Acquire(ctx)
}

// Namespaced applies the configured prefix once.
func (c *Client) Namespaced(key string) string { return util.Namespace(c.prefix, key) }

// Ping checks out a handle (dialing if needed) and pings the server.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, func(h store.Handle) error { return h.Ping(ctx) })
}

// Close closes the pool. The fencing store is owned by the caller, since one
// store may serve every client of a Manager.
func (c *Client) Close() error {
	return c.pool.Close()
}

// do runs fn on a pooled handle. Handles that failed at the network level
// are discarded rather than returned to the pool.
func (c *Client) do(ctx context.Context, fn func(store.Handle) error) (err error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if isBroken(err) {
			conn.Discard()
			return
		}
		conn.Release()
	}()
	return fn(conn.Handle)
}

func isBroken(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// detached returns a context that survives the caller's cancellation but is
// still bounded, for cleanup that must run after the caller gave up.
func (c *Client) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.releaseTimeout)
}

// ---- namespaced passthroughs ----

// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		v  []byte
		ok bool
	)
	err := c.do(ctx, func(h store.Handle) (err error) {
		v, ok, err = h.Get(ctx, c.Namespaced(key))
		return err
	})
	return v, ok, err
}

// Set writes value; ttl 0 keeps it forever.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return ErrInvalidTTL
	}
	return c.do(ctx, func(h store.Handle) error {
		return h.Set(ctx, c.Namespaced(key), value, ttl)
	})
}

// SetNX writes value only if key is absent; ttl 0 writes without expiry.
func (c *Client) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		return false, ErrInvalidTTL
	}
	var ok bool
	err := c.do(ctx, func(h store.Handle) (err error) {
		ok, err = h.SetNX(ctx, c.Namespaced(key), value, ttl)
		return err
	})
	return ok, err
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	var ok bool
	err := c.do(ctx, func(h store.Handle) (err error) {
		ok, err = h.Expire(ctx, c.Namespaced(key), ttl)
		return err
	})
	return ok, err
}

// TTL reports the remaining lifetime; exists=false for a missing key and
// ttl=0 with exists=true for a key without expiry.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	var (
		ttl    time.Duration
		exists bool
	)
	err := c.do(ctx, func(h store.Handle) (err error) {
		ttl, exists, err = h.TTL(ctx, c.Namespaced(key))
		return err
	})
	return ttl, exists, err
}

func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var n int64
	err := c.do(ctx, func(h store.Handle) (err error) {
		n, err = h.Exists(ctx, c.namespaceAll(keys)...)
		return err
	})
	return n, err
}

// Delete removes keys and returns how many existed.
func (c *Client) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var n int64
	err := c.do(ctx, func(h store.Handle) (err error) {
		n, err = h.Del(ctx, c.namespaceAll(keys)...)
		return err
	})
	return n, err
}

// DeleteFolder removes every key below a colon-separated path, e.g.
// DeleteFolder(ctx, "report") drops "report:2023", "report:2024:q1" and so on.
func (c *Client) DeleteFolder(ctx context.Context, path string) (int64, error) {
	pattern := util.FolderPattern(c.prefix, path)
	var n int64
	err := c.do(ctx, func(h store.Handle) error {
		keys, err := h.Scan(ctx, pattern)
		if err != nil || len(keys) == 0 {
			return err
		}
		n, err = h.Del(ctx, keys...)
		return err
	})
	if err == nil {
		c.log.Debug("folder deleted", Fields{"pattern": pattern, "deleted": n})
	}
	return n, err
}

func (c *Client) namespaceAll(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = c.Namespaced(k)
	}
	return out
}

// defaultFlight returns the JSON flight shared by package-level
// GetOrCompute calls for value type V.
func defaultFlight[V any](c *Client) *Flight[V] {
	t := reflect.TypeFor[V]()
	if f, ok := c.flights.Load(t); ok {
		return f.(*Flight[V])
	}
	f, _ := c.flights.LoadOrStore(t, newFlight(c, FlightOptions[V]{}))
	return f.(*Flight[V])
}
