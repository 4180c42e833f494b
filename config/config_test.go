package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryYAML = `
default: cache
connections:
  cache:
    host: 10.0.0.5
    port: 6380
    connect_timeout: 2s
    read_timeout: 500ms
    retry_interval: 100ms
    retry_count: 3
    password: secret
    database: 2
    prefix: "app:"
    pool_size: 16
    pool_wait_time: 60s
    acquire_timeout: 1s
    options:
      client_name: worker
  sessions:
    prefix: "sess:"
`

func TestParseYAMLRegistry(t *testing.T) {
	r, err := Parse([]byte(registryYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "cache", r.DefaultName())

	c, ok := r.Lookup("")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.5:6380", c.Addr())
	assert.Equal(t, 2*time.Second, c.ConnectTimeout)
	assert.Equal(t, 500*time.Millisecond, c.ReadTimeout)
	assert.Equal(t, 100*time.Millisecond, c.RetryInterval)
	assert.Equal(t, 3, c.RetryCount)
	assert.Equal(t, "secret", c.Password)
	assert.Equal(t, 2, c.Database)
	assert.Equal(t, "app:", c.Prefix)
	assert.Equal(t, 16, c.PoolSize)
	assert.Equal(t, time.Minute, c.PoolWaitTime)
	assert.Equal(t, time.Second, c.AcquireTimeout)
	assert.Equal(t, "worker", c.Options["client_name"])

	s, ok := r.Lookup("sessions")
	require.True(t, ok)
	assert.Equal(t, DefaultHost, s.Host)
	assert.Equal(t, DefaultPort, s.Port)
	assert.Equal(t, DefaultPoolSize, s.PoolSize)
	assert.Equal(t, "sess:", s.Prefix)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestParseJSONConnection(t *testing.T) {
	c, err := ParseConnection([]byte(`{"host":"redis","port":6379,"prefix":"p:","pool_wait_time":"5s"}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", c.Addr())
	assert.Equal(t, 5*time.Second, c.PoolWaitTime)
	assert.Equal(t, DefaultPoolSize, c.PoolSize)
}

func TestRegistryValidation(t *testing.T) {
	_, err := Parse([]byte(`default: x`), FormatYAML)
	assert.ErrorIs(t, err, ErrNoConnections)

	_, err = Parse([]byte("default: x\nconnections:\n  y:\n    port: 1\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrUnknownDefault)

	_, err = Parse([]byte("connections:\n  redis:\n    port: 70000\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidPort)

	_, err = Parse([]byte("connections:\n  redis:\n    pool_size: -1\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidPool)

	_, err = Parse([]byte("connections:\n  redis:\n    read_timeout: -1s\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrNegativeTiming)
}

func TestWithDefaultsCopiesOptions(t *testing.T) {
	orig := Config{Options: map[string]any{"client_name": "a"}}
	c := orig.WithDefaults()
	c.Options["client_name"] = "b"
	assert.Equal(t, "a", orig.Options["client_name"])
}

func TestLoadDetectsFormat(t *testing.T) {
	dir := t.TempDir()

	yml := filepath.Join(dir, "redis.yml")
	require.NoError(t, os.WriteFile(yml, []byte(registryYAML), 0o600))
	r, err := Load(yml)
	require.NoError(t, err)
	assert.Len(t, r.Connections, 2)

	js := filepath.Join(dir, "redis.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"connections":{"redis":{"port":7000}}}`), 0o600))
	r, err = Load(js)
	require.NoError(t, err)
	c, ok := r.Lookup("")
	require.True(t, ok)
	assert.Equal(t, 7000, c.Port)

	_, err = Load(filepath.Join(dir, "redis.toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load("")
	assert.ErrorIs(t, err, ErrEmptyPath)
}
