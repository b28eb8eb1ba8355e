// Package observer runs the poll and refresh loops and publishes the latest
// snapshot.
package observer

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kubeadapt/kueue-observer/internal/collector"
	"github.com/kubeadapt/kueue-observer/internal/config"
	obserrors "github.com/kubeadapt/kueue-observer/internal/errors"
	"github.com/kubeadapt/kueue-observer/internal/kueue"
	"github.com/kubeadapt/kueue-observer/internal/observability"
	"github.com/kubeadapt/kueue-observer/internal/query"
	"github.com/kubeadapt/kueue-observer/internal/snapshot"
	"github.com/kubeadapt/kueue-observer/internal/topology"
	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// Collector names and metric resource labels.
const (
	QueueListCollector     = "localqueues"
	PendingCollectorPrefix = "pending/"

	resourceLocalQueues      = "localqueues"
	resourcePendingWorkloads = "pendingworkloads"
)

// PendingCollectorName returns the registry name of a cluster queue's
// pending workloads poller.
func PendingCollectorName(clusterQueue string) string {
	return PendingCollectorPrefix + clusterQueue
}

// Observer is the main orchestrator: it owns the pollers, rebuilds the
// snapshot every refresh interval, and fans it out to subscribers.
type Observer struct {
	config         *config.Config
	api            kueue.API
	registry       *collector.Registry
	builder        *snapshot.SnapshotBuilder
	stateMachine   *StateMachine
	errorCollector *obserrors.ErrorCollector
	metrics        *observability.Metrics

	queueList *query.Poller[[]model.LocalQueueInfo]

	mu      sync.Mutex
	pending map[string]*query.Poller[[]model.PendingWorkloadEntry]

	latestSnapshot atomic.Pointer[model.ObserverSnapshot]
	ready          atomic.Bool

	subMu   sync.Mutex
	subs    map[uint64]chan *model.ObserverSnapshot
	nextSub uint64
	closed  bool
}

// NewObserver creates an Observer and registers the local queue list poller.
func NewObserver(
	cfg *config.Config,
	api kueue.API,
	registry *collector.Registry,
	builder *snapshot.SnapshotBuilder,
	stateMachine *StateMachine,
	errCollector *obserrors.ErrorCollector,
	metrics *observability.Metrics,
) *Observer {
	o := &Observer{
		config:         cfg,
		api:            api,
		registry:       registry,
		builder:        builder,
		stateMachine:   stateMachine,
		errorCollector: errCollector,
		metrics:        metrics,
		pending:        make(map[string]*query.Poller[[]model.PendingWorkloadEntry]),
		subs:           make(map[uint64]chan *model.ObserverSnapshot),
	}
	o.queueList = query.NewPoller(query.PollerConfig{
		Name:     QueueListCollector,
		Resource: resourceLocalQueues,
		Interval: cfg.PollInterval,
		Timeout:  cfg.RequestTimeout,
	}, api.ListLocalQueues, metrics, errCollector)
	registry.Register(o.queueList)
	return o
}

// IsReady reports whether the first snapshot has been published.
// Implements health.ReadinessChecker.
func (o *Observer) IsReady() bool {
	return o.ready.Load()
}

// LatestSnapshot returns the most recent snapshot, or nil if none has been
// built yet.
func (o *Observer) LatestSnapshot() *model.ObserverSnapshot {
	return o.latestSnapshot.Load()
}

// State returns the current observer state.
func (o *Observer) State() ObserverState {
	return o.stateMachine.State()
}

// Run executes the observer lifecycle: start the pollers, wait for the local
// queue list, then rebuild the snapshot every refresh interval until ctx is
// canceled.
func (o *Observer) Run(ctx context.Context) error {
	defer o.closeSubscribers()
	defer o.stateMachine.TransitionTo(StateStopped, "shutdown")

	// 1. Start the local queue list poller.
	if err := o.registry.StartAll(ctx); err != nil {
		var partial *collector.PartialStartError
		if stderrors.As(err, &partial) {
			slog.Warn("some collectors failed to start, continuing with partial data",
				"failed", partial.Failed, "total", partial.Total)
		} else {
			return fmt.Errorf("failed to start collectors: %w", err)
		}
	}
	defer o.registry.StopAll()

	// 2. Wait for the first landing (with configurable timeout).
	syncTimeout := o.config.InitialSyncTimeout
	if syncTimeout == 0 {
		syncTimeout = 30 * time.Second
	}
	slog.Info("waiting for initial queue list", "timeout", syncTimeout)

	syncCtx, syncCancel := context.WithTimeout(ctx, syncTimeout)
	defer syncCancel()
	syncStart := time.Now()
	if err := o.registry.WaitForSync(syncCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.errorCollector.Report(obserrors.ObserverError{
			Code:      obserrors.ErrTimeout,
			Message:   fmt.Sprintf("initial sync timed out after %s: %v", syncTimeout, err),
			Component: "observer",
			Timestamp: time.Now().UnixMilli(),
			Err:       err,
		})
		slog.Warn("initial sync incomplete, continuing with partial data",
			"error", err,
			"timeout", syncTimeout,
			"elapsed", time.Since(syncStart).Round(time.Millisecond),
		)
	} else {
		slog.Info("initial sync completed",
			"elapsed", time.Since(syncStart).Round(time.Millisecond),
			"state", o.queueList.Result().State(),
		)
	}

	// 3. Main loop. First refresh immediately.
	ticker := time.NewTicker(o.config.RefreshInterval)
	defer ticker.Stop()

	o.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.refresh(ctx)
		}
	}
}

func (o *Observer) refresh(ctx context.Context) {
	list := o.queueList.Result()

	if o.stateMachine.HandleQueueListState(list.State()) {
		slog.Info("observer state changed", "state", o.stateMachine.State(), "reason", o.stateMachine.StateReason())
	}

	// A list that is not ready says nothing about which cluster queues exist.
	if queues, ok := list.Data(); ok {
		o.reconcile(queues)
	}

	snap := o.builder.Build(ctx, snapshot.Inputs{
		Queues:  list,
		Pending: o.pendingResults(),
	})
	o.latestSnapshot.Store(snap)
	if !o.ready.Swap(true) {
		slog.Info("observer is ready", "snapshot_id", snap.SnapshotID)
	}
	o.publish(snap)
}

// reconcile starts a pending workloads poller for every cluster queue the
// list references and stops the pollers of cluster queues that vanished.
func (o *Observer) reconcile(queues []model.LocalQueueInfo) {
	want := topology.ClusterQueues(queues)

	o.mu.Lock()
	defer o.mu.Unlock()

	keep := make(map[string]struct{}, len(want))
	for _, cq := range want {
		keep[cq] = struct{}{}
		if _, ok := o.pending[cq]; ok {
			continue
		}
		p := o.newPendingPoller(cq)
		if err := o.registry.Add(p); err != nil {
			slog.Warn("failed to start pending workloads poller", "cluster_queue", cq, "error", err)
			continue
		}
		o.pending[cq] = p
		slog.Debug("started pending workloads poller", "cluster_queue", cq)
	}

	for cq := range o.pending {
		if _, ok := keep[cq]; ok {
			continue
		}
		name := PendingCollectorName(cq)
		o.registry.Remove(name)
		o.errorCollector.Resolve(name)
		delete(o.pending, cq)
		slog.Debug("stopped pending workloads poller", "cluster_queue", cq)
	}
}

func (o *Observer) newPendingPoller(clusterQueue string) *query.Poller[[]model.PendingWorkloadEntry] {
	return query.NewPoller(query.PollerConfig{
		Name:     PendingCollectorName(clusterQueue),
		Resource: resourcePendingWorkloads,
		Interval: o.config.PollInterval,
		Timeout:  o.config.RequestTimeout,
	}, func(ctx context.Context) ([]model.PendingWorkloadEntry, error) {
		return o.api.PendingWorkloads(ctx, clusterQueue)
	}, o.metrics, o.errorCollector)
}

func (o *Observer) pendingResults() map[string]query.Result[[]model.PendingWorkloadEntry] {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[string]query.Result[[]model.PendingWorkloadEntry], len(o.pending))
	for cq, p := range o.pending {
		out[cq] = p.Result()
	}
	return out
}

// QueryStates returns the state of every running poller, keyed by collector name.
func (o *Observer) QueryStates() map[string]string {
	out := map[string]string{
		QueueListCollector: o.queueList.Result().State().String(),
	}
	for cq, r := range o.pendingResults() {
		out[PendingCollectorName(cq)] = r.State().String()
	}
	return out
}

// Subscribe returns a channel receiving every published snapshot and a
// function that ends the subscription. A subscriber that has not consumed
// the previous snapshot misses the next one. The channel is closed when the
// observer stops.
func (o *Observer) Subscribe() (<-chan *model.ObserverSnapshot, func()) {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	ch := make(chan *model.ObserverSnapshot, 1)
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.subMu.Lock()
			defer o.subMu.Unlock()
			if c, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(c)
			}
		})
	}
}

func (o *Observer) publish(snap *model.ObserverSnapshot) {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	for id, ch := range o.subs {
		select {
		case ch <- snap:
		default:
			slog.Debug("subscriber is behind, dropping snapshot", "subscriber", id)
		}
	}
}

func (o *Observer) closeSubscribers() {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	o.closed = true
	for id, ch := range o.subs {
		close(ch)
		delete(o.subs, id)
	}
}
