package query

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	obserrors "github.com/kubeadapt/kueue-observer/internal/errors"
	"github.com/kubeadapt/kueue-observer/internal/observability"
)

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Name is the collector name, unique within a registry (e.g. "pending/cq-gpu").
	Name string
	// Resource labels query metrics (e.g. "pendingworkloads").
	Resource string
	Interval time.Duration
	// Timeout bounds each individual fetch.
	Timeout time.Duration
}

type landed[T any] struct {
	seq    uint64
	result Result[T]
}

// Poller re-issues a fetch every interval and keeps the latest result.
//
// Every issue gets a sequence number. A new issue never cancels an in-flight
// one, so responses may land out of order; a landing result replaces the
// current one only if it was issued later. Reads are lock-free.
type Poller[T any] struct {
	cfg     PollerConfig
	fetch   FetchFunc[T]
	metrics *observability.Metrics
	errs    *obserrors.ErrorCollector

	issued atomic.Uint64
	latest atomic.Pointer[landed[T]]

	mu       sync.Mutex
	running  bool
	stopped  bool
	cancel   context.CancelFunc
	stopCh   chan struct{}
	done     chan struct{}
	inflight sync.WaitGroup

	syncOnce sync.Once
	synced   chan struct{}
}

// NewPoller creates a Poller. errs may be nil.
func NewPoller[T any](cfg PollerConfig, fetch FetchFunc[T], metrics *observability.Metrics, errs *obserrors.ErrorCollector) *Poller[T] {
	return &Poller[T]{
		cfg:     cfg,
		fetch:   fetch,
		metrics: metrics,
		errs:    errs,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		synced:  make(chan struct{}),
	}
}

// Name returns the collector name.
func (p *Poller[T]) Name() string { return p.cfg.Name }

// Start launches the background polling goroutine. The first fetch is issued immediately.
func (p *Poller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.stopped {
		return nil
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	go p.run(ctx)
	return nil
}

// WaitForSync blocks until the first result lands (ready or error) or ctx is canceled.
func (p *Poller[T]) WaitForSync(ctx context.Context) error {
	select {
	case <-p.synced:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals the poller to stop, cancels in-flight fetches, and waits for
// them to return. Safe to call more than once. A stopped poller cannot be restarted.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopCh)
	running, cancel := p.running, p.cancel
	p.mu.Unlock()

	if !running {
		return
	}
	cancel()
	<-p.done
	p.inflight.Wait()
}

// Result returns the latest landed result, or Pending if none has landed.
func (p *Poller[T]) Result() Result[T] {
	if l := p.latest.Load(); l != nil {
		return l.result
	}
	return Pending[T]()
}

func (p *Poller[T]) run(ctx context.Context) {
	defer close(p.done)

	p.issue(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.issue(ctx)
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// issue starts one fetch in its own goroutine with its own timeout.
func (p *Poller[T]) issue(ctx context.Context) {
	seq := p.issued.Add(1)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()

		fctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()

		start := time.Now()
		data, err := p.fetch(fctx)
		p.metrics.QueryDuration.WithLabelValues(p.cfg.Resource).Observe(time.Since(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				// Poller is stopping; the result is meaningless.
				return
			}
			p.metrics.QueryTotal.WithLabelValues(p.cfg.Resource, "error").Inc()
			p.land(seq, Failed[T](err))
			return
		}
		p.metrics.QueryTotal.WithLabelValues(p.cfg.Resource, "ok").Inc()
		p.land(seq, Ready(data))
	}()
}

// land stores r if seq is newer than the last landed sequence number.
// It reports whether r was stored.
func (p *Poller[T]) land(seq uint64, r Result[T]) bool {
	next := &landed[T]{seq: seq, result: r}
	for {
		cur := p.latest.Load()
		if cur != nil && cur.seq >= seq {
			p.metrics.StaleDiscarded.WithLabelValues(p.cfg.Resource).Inc()
			slog.Debug("discarding stale query result",
				"poller", p.cfg.Name, "seq", seq, "landed_seq", cur.seq)
			return false
		}
		if p.latest.CompareAndSwap(cur, next) {
			p.afterLand(cur, r)
			return true
		}
	}
}

func (p *Poller[T]) afterLand(prev *landed[T], r Result[T]) {
	p.syncOnce.Do(func() { close(p.synced) })

	if err := r.Err(); err != nil {
		if p.errs != nil {
			p.errs.Report(obserrors.New(p.cfg.Name, err, time.Now()))
		}
		if prev == nil || prev.result.State() != StateError {
			slog.Warn("query failed", "poller", p.cfg.Name, "error", err)
		} else {
			slog.Debug("query still failing", "poller", p.cfg.Name, "error", err)
		}
		return
	}

	if prev != nil && prev.result.State() == StateError {
		slog.Info("query recovered", "poller", p.cfg.Name)
	}
	if p.errs != nil {
		p.errs.Resolve(p.cfg.Name)
	}
}
