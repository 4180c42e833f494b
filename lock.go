package redisflight

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/redisflight/internal/util"
	"github.com/unkn0wn-root/redisflight/store"
)

// Lease is a held lock. It is only meaningful until Expires; after that the
// record may be reclaimed by another caller and Unlock reports ErrNotOwner.
type Lease struct {
	Name    string
	Key     string // physical record key
	Token   string
	Expires time.Time
	// Fence is a strictly increasing token per lock name, or 0 when the
	// client has no fencing store.
	Fence uint64

	value  []byte
	client *Client
}

// Unlock releases the lease; see Client.Unlock.
func (l *Lease) Unlock(ctx context.Context) error { return l.client.Unlock(ctx, l) }

// lock record value: "<expiry unix millis>:<token>"
func lockValue(expires time.Time, token string) []byte {
	return []byte(strconv.FormatInt(expires.UnixMilli(), 10) + ":" + token)
}

// lockExpiry parses a record value. Records without a token are legacy
// values holding bare unix seconds.
func lockExpiry(v []byte) (time.Time, bool) {
	if i := bytes.IndexByte(v, ':'); i >= 0 {
		ms, err := strconv.ParseInt(string(v[:i]), 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms), true
	}
	s, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(s, 0), true
}

// Lock blocks until the named lock is obtained. Each round waits poll, removes
// the record if its expiry has passed, then tries to create it for occupy.
// There is no attempt limit: bound the wait with a context deadline, which
// yields ErrLockTimeout.
func (c *Client) Lock(ctx context.Context, name string, occupy, poll time.Duration) (*Lease, error) {
	if name == "" {
		return nil, ErrEmptyKey
	}
	if occupy <= 0 {
		return nil, ErrInvalidTTL
	}
	poll = coalesce(max(poll, 0), DefaultLockPoll)

	key := util.LockKey(c.prefix, name)
	token := uuid.NewString()
	start := c.now()

	t := time.NewTimer(poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, lockWaitErr(ctx, name)
		case <-t.C:
		}

		lease, err := c.tryAcquire(ctx, name, key, token, occupy)
		if err != nil {
			if ctx.Err() != nil {
				return nil, lockWaitErr(ctx, name)
			}
			return nil, err
		}
		if lease != nil {
			waited := c.now().Sub(start)
			c.hooks.LockAcquired(key, waited)
			c.log.Debug("lock acquired", Fields{"key": key, "waited": waited})
			return lease, nil
		}
		t.Reset(poll)
	}
}

// TryLock makes a single attempt (including stale-record reclamation).
func (c *Client) TryLock(ctx context.Context, name string, occupy time.Duration) (*Lease, bool, error) {
	if name == "" {
		return nil, false, ErrEmptyKey
	}
	if occupy <= 0 {
		return nil, false, ErrInvalidTTL
	}
	key := util.LockKey(c.prefix, name)
	lease, err := c.tryAcquire(ctx, name, key, uuid.NewString(), occupy)
	if err != nil || lease == nil {
		return nil, false, err
	}
	c.hooks.LockAcquired(key, 0)
	return lease, true, nil
}

// Unlock removes the record only while it still carries the lease token.
// It runs detached from ctx cancellation so a cancelled holder still frees
// the lock.
func (c *Client) Unlock(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return errors.New("redisflight: nil lease")
	}
	rctx, cancel := c.detached(ctx)
	defer cancel()

	var owned bool
	err := c.do(rctx, func(h store.Handle) (err error) {
		owned, err = h.CompareAndDelete(rctx, lease.Key, lease.value)
		return err
	})
	if err != nil {
		return err
	}
	c.hooks.LockReleased(lease.Key, owned)
	if !owned {
		c.log.Warn("unlock of a lease that no longer owns the record", Fields{"key": lease.Key})
		return fmt.Errorf("%w: %s", ErrNotOwner, lease.Name)
	}
	return nil
}

// ForceUnlock deletes the record whoever holds it. It exists for operational
// recovery only: a live holder keeps running without mutual exclusion.
func (c *Client) ForceUnlock(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, ErrEmptyKey
	}
	key := util.LockKey(c.prefix, name)
	var n int64
	err := c.do(ctx, func(h store.Handle) (err error) {
		n, err = h.Del(ctx, key)
		return err
	})
	if err == nil && n > 0 {
		c.log.Warn("lock force-unlocked", Fields{"key": key})
	}
	return n > 0, err
}

// WithLock runs fn while holding the named lock and always unlocks. An
// ErrNotOwner from the unlock means fn outlived occupy and is reported even
// when fn succeeded.
func (c *Client) WithLock(ctx context.Context, name string, occupy time.Duration, fn func(context.Context, *Lease) error) error {
	lease, err := c.Lock(ctx, name, occupy, DefaultLockPoll)
	if err != nil {
		return err
	}
	fnErr := fn(ctx, lease)
	return errors.Join(fnErr, lease.Unlock(ctx))
}

// tryAcquire returns (nil, nil) when the lock is held by someone else.
func (c *Client) tryAcquire(ctx context.Context, name, key, token string, occupy time.Duration) (*Lease, error) {
	var lease *Lease
	err := c.do(ctx, func(h store.Handle) error {
		cur, ok, err := h.Get(ctx, key)
		if err != nil {
			return err
		}
		now := c.now()
		if ok {
			exp, valid := lockExpiry(cur)
			if !valid || !now.After(exp) {
				return nil
			}
			removed, err := h.CompareAndDelete(ctx, key, cur)
			if err != nil {
				return err
			}
			if removed {
				c.hooks.StaleLockReclaimed(key, now.Sub(exp))
				c.log.Info("stale lock reclaimed", Fields{"key": key, "expired_for": now.Sub(exp)})
			}
		}

		expires := now.Add(occupy)
		val := lockValue(expires, token)
		won, err := h.SetNX(ctx, key, val, occupy)
		if err != nil || !won {
			return err
		}
		lease = &Lease{Name: name, Key: key, Token: token, Expires: expires, value: val, client: c}
		return nil
	})
	if err != nil || lease == nil {
		return nil, err
	}

	if c.fence != nil {
		f, err := c.fence.Next(ctx, key)
		if err != nil {
			_ = c.Unlock(ctx, lease)
			return nil, fmt.Errorf("redisflight: fencing token for %s: %w", name, err)
		}
		lease.Fence = f
	}
	return lease, nil
}

func lockWaitErr(ctx context.Context, name string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w %q: %w", ErrLockTimeout, name, ctx.Err())
	}
	return ctx.Err()
}
