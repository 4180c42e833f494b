package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/redisflight"
)

func TestForwardsLevelsAndFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Info("connected", redisflight.Fields{"name": "redis", "database": 2})
	l.Warn("unlock of a lease that no longer owns the record", redisflight.Fields{
		"key": "app:lock:a", "err": errors.New("gone"),
	})

	require.Len(t, hook.AllEntries(), 2)
	first := hook.AllEntries()[0]
	require.Equal(t, logrus.InfoLevel, first.Level)
	require.Equal(t, "redisflight", first.Data["component"])
	require.Equal(t, 2, first.Data["database"])

	last := hook.LastEntry()
	require.Equal(t, logrus.WarnLevel, last.Level)
	require.EqualError(t, last.Data[logrus.ErrorKey].(error), "gone")
	require.Equal(t, "app:lock:a", last.Data["key"])
}
