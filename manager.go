package redisflight

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/redisflight/config"
)

// Manager owns one Client per named connection of a config.Registry.
// Clients are created on first Connect and reused until Reconnect or Close.
type Manager struct {
	reg  config.Registry
	opts Options

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool

	sf singleflight.Group
}

func NewManager(reg config.Registry, opts Options) (*Manager, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{reg: reg, opts: opts, clients: make(map[string]*Client)}, nil
}

// Connect returns the client for name ("" selects the registry default),
// creating it and verifying it with PING on first use.
func (m *Manager) Connect(ctx context.Context, name string) (*Client, error) {
	return m.connect(ctx, name, false)
}

// Reconnect closes any existing client for name and builds a fresh one.
// Leases and flights bound to the old client keep using its closed pool.
func (m *Manager) Reconnect(ctx context.Context, name string) (*Client, error) {
	return m.connect(ctx, name, true)
}

// Default is Connect for the registry default.
func (m *Manager) Default(ctx context.Context) (*Client, error) {
	return m.connect(ctx, "", false)
}

// Names lists the configured connection names.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.reg.Connections))
	for n := range m.reg.Connections {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Close closes every client. Further Connect calls fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	clients := m.clients
	m.clients = nil
	m.mu.Unlock()

	var errs []error
	for _, c := range clients {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (m *Manager) connect(ctx context.Context, name string, force bool) (*Client, error) {
	if name == "" {
		name = m.reg.DefaultName()
	}
	cfg, ok := m.reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnection, name)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	old, cached := m.clients[name]
	if cached && !force {
		m.mu.Unlock()
		return old, nil
	}
	if cached {
		delete(m.clients, name)
	}
	m.mu.Unlock()

	if cached {
		if err := old.Close(); err != nil {
			old.log.Warn("closing replaced client", Fields{"name": name, "err": err})
		}
	}

	// dialing happens outside m.mu; concurrent builds of one name share a result
	v, err, _ := m.sf.Do(name, func() (any, error) {
		return m.build(ctx, name, cfg)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

// build creates and pings a client, then publishes it unless the manager
// closed meanwhile or another client for name was published first.
func (m *Manager) build(ctx context.Context, name string, cfg config.Config) (*Client, error) {
	c, err := New(cfg, m.opts)
	if err != nil {
		return nil, fmt.Errorf("redisflight: connection %q: %w", name, err)
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = c.Close()
		return nil, ErrClosed
	}
	if existing, ok := m.clients[name]; ok {
		m.mu.Unlock()
		_ = c.Close()
		return existing, nil
	}
	m.clients[name] = c
	m.mu.Unlock()

	c.log.Info("connected", Fields{"name": name, "addr": c.cfg.Addr(), "database": c.cfg.Database})
	return c, nil
}
