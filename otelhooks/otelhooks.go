// Package otelhooks records hook events as OpenTelemetry metrics.
// Keys are never used as attributes; only event kinds and reasons are, so
// cardinality stays bounded.
package otelhooks

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/redisflight"
)

const (
	scope = "github.com/unkn0wn-root/redisflight"

	metricLockEvents   = "redisflight.lock.events"
	metricCacheEvents  = "redisflight.cache.events"
	metricDiscarded    = "redisflight.pool.discarded"
	metricLockWait     = "redisflight.lock.wait"
	metricStampedeWait = "redisflight.stampede.wait"
)

var (
	attrEvent  = attribute.Key("event")
	attrReason = attribute.Key("reason")
)

var waitBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type Hooks struct {
	lockEvents   metric.Int64Counter
	cacheEvents  metric.Int64Counter
	discarded    metric.Int64Counter
	lockWait     metric.Float64Histogram
	stampedeWait metric.Float64Histogram
}

var _ redisflight.Hooks = (*Hooks)(nil)

func New(mp metric.MeterProvider) (*Hooks, error) {
	if mp == nil {
		return nil, errors.New("otelhooks: meter provider is required")
	}
	m := mp.Meter(scope)
	h := &Hooks{}
	var err error
	if h.lockEvents, err = m.Int64Counter(metricLockEvents,
		metric.WithDescription("Lock acquisitions, releases and reclaims"), metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	if h.cacheEvents, err = m.Int64Counter(metricCacheEvents,
		metric.WithDescription("Single-flight compute and write events"), metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	if h.discarded, err = m.Int64Counter(metricDiscarded,
		metric.WithDescription("Pooled handles closed instead of reused"), metric.WithUnit("{handle}")); err != nil {
		return nil, err
	}
	if h.lockWait, err = m.Float64Histogram(metricLockWait,
		metric.WithDescription("Time spent waiting in Lock"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(waitBuckets...)); err != nil {
		return nil, err
	}
	if h.stampedeWait, err = m.Float64Histogram(metricStampedeWait,
		metric.WithDescription("Time a waiting caller polled before giving up"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(waitBuckets...)); err != nil {
		return nil, err
	}
	return h, nil
}

func lockEvent(name string) metric.AddOption {
	return metric.WithAttributes(attrEvent.String(name))
}

func (h *Hooks) LockAcquired(_ string, waited time.Duration) {
	ctx := context.Background()
	h.lockEvents.Add(ctx, 1, lockEvent("acquired"))
	h.lockWait.Record(ctx, waited.Seconds())
}

func (h *Hooks) LockReleased(_ string, owned bool) {
	ev := "released"
	if !owned {
		ev = "not_owner"
	}
	h.lockEvents.Add(context.Background(), 1, lockEvent(ev))
}

func (h *Hooks) StaleLockReclaimed(string, time.Duration) {
	h.lockEvents.Add(context.Background(), 1, lockEvent("stale_reclaimed"))
}

func (h *Hooks) LockReleaseError(string, error) {
	h.lockEvents.Add(context.Background(), 1, lockEvent("release_error"))
}

func (h *Hooks) ComputeStarted(string) {
	h.cacheEvents.Add(context.Background(), 1, metric.WithAttributes(attrEvent.String("compute")))
}

func (h *Hooks) ComputeSkippedEmpty(string) {
	h.cacheEvents.Add(context.Background(), 1, metric.WithAttributes(attrEvent.String("empty")))
}

func (h *Hooks) CacheSetError(string, error) {
	h.cacheEvents.Add(context.Background(), 1, metric.WithAttributes(attrEvent.String("set_error")))
}

func (h *Hooks) StampedeTimeout(_ string, waited time.Duration) {
	ctx := context.Background()
	h.cacheEvents.Add(ctx, 1, metric.WithAttributes(attrEvent.String("stampede_timeout")))
	h.stampedeWait.Record(ctx, waited.Seconds())
}

func (h *Hooks) HandleDiscarded(reason string) {
	h.discarded.Add(context.Background(), 1, metric.WithAttributes(attrReason.String(reason)))
}
