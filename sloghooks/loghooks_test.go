package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newBufLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return l, &buf
}

func TestRedactsKeysByDefault(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{})
	h.StampedeTimeout("app:user:42", time.Second)

	out := buf.String()
	if strings.Contains(out, "user:42") {
		t.Fatalf("raw key leaked: %s", out)
	}
	if !strings.Contains(out, "redisflight.stampede_timeout") {
		t.Fatalf("missing event: %s", out)
	}

	l, buf = newBufLogger()
	h = New(l, Options{Redact: func(s string) string { return s }})
	h.CacheSetError("app:user:42", errors.New("oom"))
	if !strings.Contains(buf.String(), "app:user:42") || !strings.Contains(buf.String(), "oom") {
		t.Fatalf("custom redactor ignored: %s", buf.String())
	}
}

func TestSamplesLockEvents(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{LockEvery: 5})
	for i := 0; i < 10; i++ {
		h.LockAcquired("k", 0)
	}
	if n := strings.Count(buf.String(), "lock_acquired"); n != 2 {
		t.Fatalf("logged %d of 10, want 2", n)
	}

	// ownership loss is never sampled away
	h.LockReleased("k", false)
	if !strings.Contains(buf.String(), "redisflight.lock_lost") {
		t.Fatalf("lost lock not logged")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	h := New(nil, Options{})
	h.LockAcquired("k", 0)
	h.LockReleased("k", false)
	h.StaleLockReclaimed("k", 0)
	h.ComputeStarted("k")
	h.ComputeSkippedEmpty("k")
	h.StampedeTimeout("k", 0)
	h.CacheSetError("k", nil)
	h.LockReleaseError("k", nil)
	h.HandleDiscarded("broken")
}
