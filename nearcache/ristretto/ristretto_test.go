package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, Metrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	ok, err := p.Set(ctx, "app:report:2024", []byte(`{"year":2024}`), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	p.Wait()

	b, hit, err := p.Get(ctx, "app:report:2024")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, `{"year":2024}`, string(b))
	require.NotNil(t, p.Metrics())

	require.NoError(t, p.Del(ctx, "app:report:2024"))
	_, hit, _ = p.Get(ctx, "app:report:2024")
	require.False(t, hit)
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(Config{NumCounters: 0, MaxCost: 10})
	require.Error(t, err)
	_, err = New(Config{NumCounters: 10, MaxCost: 0})
	require.Error(t, err)
}
