package slog

import (
	"bytes"
	"encoding/json"
	stdslog "log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/redisflight"
)

func TestGroupsFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})))

	l.Debug("filtered", redisflight.Fields{"k": 1})
	require.Zero(t, buf.Len(), "debug record should be filtered")

	l.Warn("gave up waiting for cache fill", redisflight.Fields{"key": "app:k", "attempts": 12})
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "WARN", rec["level"])
	group, ok := rec["redisflight"].(map[string]any)
	require.True(t, ok, "fields not grouped: %v", rec)
	require.Equal(t, "app:k", group["key"])
	require.EqualValues(t, 12, group["attempts"])
}
