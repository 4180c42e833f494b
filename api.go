package redisflight

import (
	"time"

	"github.com/unkn0wn-root/redisflight/config"
	"github.com/unkn0wn-root/redisflight/fencing"
	"github.com/unkn0wn-root/redisflight/store"
)

// DialFunc builds the dialer for one connection config.
// store.NewDialer is used when Options.Dial is nil.
type DialFunc func(cfg config.Config) store.Dialer

// Options tune a Client. All fields are optional.
type Options struct {
	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	// Fencing, when set, stamps every lock lease with a strictly increasing
	// token (Lease.Fence). The caller closes it.
	Fencing fencing.Store

	Dial DialFunc

	// ReleaseTimeout bounds unlock and compute-lock cleanup, which run on a
	// context detached from the caller's cancellation. 0 => 2s
	ReleaseTimeout time.Duration
}
