// Package zap adapts a *zap.Logger to redisflight.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/redisflight"
)

type Logger struct{ L *zap.Logger }

var _ redisflight.Logger = Logger{}

// New names the logger "redisflight"; a nil logger discards everything.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("redisflight")}
}

func (z Logger) Debug(msg string, f redisflight.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f redisflight.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f redisflight.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f redisflight.Fields) { z.L.Error(msg, fields(f)...) }

// fields are emitted in key order so output is stable across runs.
func fields(f redisflight.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
