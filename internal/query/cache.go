package query

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	obserrors "github.com/kubeadapt/kueue-observer/internal/errors"
	"github.com/kubeadapt/kueue-observer/internal/observability"
	"github.com/kubeadapt/kueue-observer/internal/store"
)

// CacheConfig configures a Cache.
type CacheConfig struct {
	// Name labels cache metrics and error reports (e.g. "workloads").
	Name string
	// RetryInterval is how long an errored slot waits before Ensure re-fetches it.
	RetryInterval time.Duration
	// Timeout bounds each individual fetch.
	Timeout time.Duration
}

type slot[T any] struct {
	result   Result[T]
	gen      uint64
	inflight bool
	failedAt time.Time
}

// Cache holds one result slot per key. A key is fetched once and cached for
// as long as callers keep it visible via Retain. Errored slots are re-fetched
// after RetryInterval.
type Cache[T any] struct {
	cfg     CacheConfig
	slots   *store.TypedStore[slot[T]]
	metrics *observability.Metrics
	errs    *obserrors.ErrorCollector
	clock   obserrors.Clock

	gen      atomic.Uint64
	inflight sync.WaitGroup
}

// NewCache creates a Cache. errs may be nil; clock defaults to the real clock.
func NewCache[T any](cfg CacheConfig, metrics *observability.Metrics, errs *obserrors.ErrorCollector, clock obserrors.Clock) *Cache[T] {
	if clock == nil {
		clock = obserrors.RealClock{}
	}
	return &Cache[T]{
		cfg:     cfg,
		slots:   store.NewTypedStore[slot[T]](),
		metrics: metrics,
		errs:    errs,
		clock:   clock,
	}
}

// Ensure starts a fetch for key unless the key already has a ready or
// in-flight slot, or an errored slot younger than RetryInterval. It never
// blocks on the fetch and reports whether one was started.
func (c *Cache[T]) Ensure(ctx context.Context, key string, fetch FetchFunc[T]) bool {
	now := c.clock.Now()
	var gen uint64
	claimed := c.slots.Update(key, func(cur slot[T], ok bool) (slot[T], bool) {
		if ok {
			if cur.inflight || cur.result.State() != StateError {
				return cur, false
			}
			if now.Sub(cur.failedAt) < c.cfg.RetryInterval {
				return cur, false
			}
		}
		gen = c.gen.Add(1)
		next := slot[T]{result: Pending[T](), gen: gen, inflight: true}
		if ok {
			// Keep showing the failure while the retry runs.
			next.result = cur.result
			next.failedAt = cur.failedAt
		}
		return next, true
	})
	if !claimed {
		return false
	}

	c.metrics.CacheSlots.WithLabelValues(c.cfg.Name).Set(float64(c.slots.Len()))

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		fctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		start := time.Now()
		data, err := fetch(fctx)
		c.metrics.QueryDuration.WithLabelValues(c.cfg.Name).Observe(time.Since(start).Seconds())

		var r Result[T]
		if err != nil {
			c.metrics.QueryTotal.WithLabelValues(c.cfg.Name, "error").Inc()
			r = Failed[T](err)
		} else {
			c.metrics.QueryTotal.WithLabelValues(c.cfg.Name, "ok").Inc()
			r = Ready(data)
		}
		c.land(key, gen, r)
	}()
	return true
}

// land writes r into key's slot if the slot still belongs to gen. A fetch
// whose key was evicted (or evicted and re-claimed) is dropped.
func (c *Cache[T]) land(key string, gen uint64, r Result[T]) {
	failedAt := time.Time{}
	if r.State() == StateError {
		failedAt = c.clock.Now()
	}
	stored := c.slots.Update(key, func(cur slot[T], ok bool) (slot[T], bool) {
		if !ok || cur.gen != gen {
			return cur, false
		}
		return slot[T]{result: r, gen: gen, failedAt: failedAt}, true
	})
	if !stored {
		c.metrics.StaleDiscarded.WithLabelValues(c.cfg.Name).Inc()
		slog.Debug("dropping result for evicted key", "cache", c.cfg.Name, "key", key)
		return
	}
	if err := r.Err(); err != nil {
		slog.Debug("cached query failed", "cache", c.cfg.Name, "key", key, "error", err)
		if c.errs != nil {
			c.errs.Report(obserrors.New(c.cfg.Name, err, c.clock.Now()))
		}
	}
}

// Get returns the result slot for key, or Pending if the key is unknown.
func (c *Cache[T]) Get(key string) Result[T] {
	if s, ok := c.slots.Get(key); ok {
		return s.result
	}
	return Pending[T]()
}

// Retain evicts every slot whose key is not in visible and returns the number evicted.
func (c *Cache[T]) Retain(visible []string) int {
	keep := make(map[string]struct{}, len(visible))
	for _, k := range visible {
		keep[k] = struct{}{}
	}
	removed := c.slots.Retain(func(k string) bool {
		_, ok := keep[k]
		return ok
	})
	c.metrics.CacheSlots.WithLabelValues(c.cfg.Name).Set(float64(c.slots.Len()))
	return removed
}

// Len returns the number of slots.
func (c *Cache[T]) Len() int { return c.slots.Len() }

// Keys returns the slot keys in sorted order.
func (c *Cache[T]) Keys() []string { return c.slots.Keys() }

// Wait blocks until all in-flight fetches have landed.
func (c *Cache[T]) Wait() { c.inflight.Wait() }
