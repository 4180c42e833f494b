// Package config describes how to reach a Redis-compatible store and how the
// connection pool in front of it behaves. Values are plain structs; they are
// copied into the pool and store at construction time and never mutated after.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 6379
	DefaultPoolSize = 64
	DefaultName     = "redis"
)

var (
	ErrInvalidPort    = errors.New("config: port out of range")
	ErrInvalidPool    = errors.New("config: pool size must be positive")
	ErrNegativeTiming = errors.New("config: timeouts and intervals must not be negative")
	ErrNoConnections  = errors.New("config: no connections defined")
	ErrUnknownDefault = errors.New("config: default connection is not defined")
)

// Config is a single connection definition.
type Config struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	RetryInterval  time.Duration `koanf:"retry_interval"`
	RetryCount     int           `koanf:"retry_count"`
	Password       string        `koanf:"password"`
	Database       int           `koanf:"database"`
	Prefix         string        `koanf:"prefix"`

	PoolSize int `koanf:"pool_size"`
	// PoolWaitTime is the idle window after which a pooled handle is discarded
	// instead of reused. 0 keeps handles forever.
	PoolWaitTime time.Duration `koanf:"pool_wait_time"`
	// AcquireTimeout bounds how long Acquire waits for a free handle.
	// 0 waits until the caller's context is done.
	AcquireTimeout time.Duration `koanf:"acquire_timeout"`

	// Options carries store-specific settings (see store.ApplyOptions).
	Options map[string]any `koanf:"options"`
}

// WithDefaults returns a copy with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.Options != nil {
		opts := make(map[string]any, len(c.Options))
		for k, v := range c.Options {
			opts[k] = v
		}
		c.Options = opts
	}
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPool, c.PoolSize)
	}
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 ||
		c.RetryInterval < 0 || c.PoolWaitTime < 0 || c.AcquireTimeout < 0 || c.RetryCount < 0 {
		return ErrNegativeTiming
	}
	if c.Database < 0 {
		return fmt.Errorf("config: database index must not be negative: %d", c.Database)
	}
	return nil
}

// Addr is host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Registry is a set of named connections plus the name used when none is given.
type Registry struct {
	Default     string            `koanf:"default"`
	Connections map[string]Config `koanf:"connections"`
}

// Lookup returns the defaulted connection config for name ("" = default).
func (r Registry) Lookup(name string) (Config, bool) {
	if name == "" {
		name = r.DefaultName()
	}
	c, ok := r.Connections[name]
	if !ok {
		return Config{}, false
	}
	return c.WithDefaults(), true
}

// DefaultName returns Default or "redis" when unset.
func (r Registry) DefaultName() string {
	if r.Default == "" {
		return DefaultName
	}
	return r.Default
}

// Validate checks every connection and that the default exists.
func (r Registry) Validate() error {
	if len(r.Connections) == 0 {
		return ErrNoConnections
	}
	if _, ok := r.Connections[r.DefaultName()]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDefault, r.DefaultName())
	}
	for name, c := range r.Connections {
		if err := c.WithDefaults().Validate(); err != nil {
			return fmt.Errorf("connection %q: %w", name, err)
		}
	}
	return nil
}
