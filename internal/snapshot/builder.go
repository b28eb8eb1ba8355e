package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kubeadapt/kueue-observer/internal/admission"
	"github.com/kubeadapt/kueue-observer/internal/config"
	obserrors "github.com/kubeadapt/kueue-observer/internal/errors"
	"github.com/kubeadapt/kueue-observer/internal/observability"
	"github.com/kubeadapt/kueue-observer/internal/query"
	"github.com/kubeadapt/kueue-observer/internal/topology"
	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// Component is the error-collector component of snapshot assembly.
const Component = "snapshot"

// WorkloadEnricher joins queued workloads with their details and owners.
// *enrichment.Enricher implements it.
type WorkloadEnricher interface {
	Enrich(ctx context.Context, queued model.QueuedWorkload) model.DisplayRecord
	Retain(workloadKeys, ownerKeys []string) int
}

// Inputs are the poller results one build reads.
type Inputs struct {
	Queues query.Result[[]model.LocalQueueInfo]
	// Pending holds the pending workloads result of each cluster queue.
	// A missing cluster queue counts as pending.
	Pending map[string]query.Result[[]model.PendingWorkloadEntry]
}

// PendingFor returns the pending workloads result of clusterQueue.
func (in Inputs) PendingFor(clusterQueue string) query.Result[[]model.PendingWorkloadEntry] {
	if r, ok := in.Pending[clusterQueue]; ok {
		return r
	}
	return query.Pending[[]model.PendingWorkloadEntry]()
}

// SnapshotBuilder reads the current poller results, builds the topology and
// admission views, runs enrichment, computes the summary, and returns a
// complete ObserverSnapshot.
type SnapshotBuilder struct {
	config         *config.Config
	enricher       WorkloadEnricher
	metrics        *observability.Metrics
	errorCollector *obserrors.ErrorCollector
	clock          obserrors.Clock
}

// NewSnapshotBuilder creates a SnapshotBuilder. enricher may be nil, in which
// case records carry only the pending summary fields.
func NewSnapshotBuilder(
	cfg *config.Config,
	enricher WorkloadEnricher,
	metrics *observability.Metrics,
	errCollector *obserrors.ErrorCollector,
	clock obserrors.Clock,
) *SnapshotBuilder {
	if clock == nil {
		clock = obserrors.RealClock{}
	}
	return &SnapshotBuilder{
		config:         cfg,
		enricher:       enricher,
		metrics:        metrics,
		errorCollector: errCollector,
		clock:          clock,
	}
}

// Build assembles a snapshot from in. ctx bounds the enrichment fetches it
// triggers; Build itself never waits on the network.
func (b *SnapshotBuilder) Build(ctx context.Context, in Inputs) *model.ObserverSnapshot {
	start := time.Now()
	now := b.clock.Now()

	snap := &model.ObserverSnapshot{
		SnapshotID:      uuid.New().String(),
		ObserverID:      b.config.ObserverID,
		ObserverVersion: b.config.ObserverVersion,
		Timestamp:       now.UnixMilli(),
		Queues:          []model.QueueView{},
	}

	queues, listReady := in.Queues.Data()
	if listReady {
		g := topology.Build(queues)
		snap.Topology = &g

		workloadKeys, ownerKeys := b.buildQueues(ctx, snap, queues, in)

		// Only a ready list says what is visible; a failed poll evicts nothing.
		if b.enricher != nil {
			b.enricher.Retain(workloadKeys, ownerKeys)
		}
	}

	snap.Health = b.health(queues, in)
	snap.Summary = ComputeSummary(snap, queues)

	if b.metrics != nil {
		b.metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
		b.metrics.PendingWorkloads.Set(float64(snap.Summary.PendingWorkloadCount))
		if snap.Topology != nil {
			b.metrics.GraphNodes.Set(float64(len(snap.Topology.Nodes)))
			b.metrics.GraphEdges.Set(float64(len(snap.Topology.Edges)))
		}
	}

	return snap
}

// buildQueues fills one QueueView per local queue and returns the workload
// and owner keys visible in this cycle.
func (b *SnapshotBuilder) buildQueues(ctx context.Context, snap *model.ObserverSnapshot, queues []model.LocalQueueInfo, in Inputs) ([]string, []string) {
	var workloadKeys, ownerKeys []string

	for _, q := range queues {
		pending := in.PendingFor(q.ClusterQueue)
		queued := admission.ViewOf(pending, q.Namespace, q.Name)

		view := model.QueueView{
			Namespace:    q.Namespace,
			Name:         q.Name,
			ClusterQueue: q.ClusterQueue,
			Ready:        pending.IsReady(),
			Workloads:    make([]model.DisplayRecord, 0, len(queued)),
		}
		for _, w := range queued {
			view.Workloads = append(view.Workloads, b.enrich(ctx, w))
			workloadKeys = append(workloadKeys, w.Entry.WorkloadKey())
			if k := w.Entry.OwnerKey(); k != "" {
				ownerKeys = append(ownerKeys, k)
			}
		}
		snap.Queues = append(snap.Queues, view)
	}
	return workloadKeys, ownerKeys
}

func (b *SnapshotBuilder) enrich(ctx context.Context, w model.QueuedWorkload) model.DisplayRecord {
	if b.enricher != nil {
		return b.enricher.Enrich(ctx, w)
	}
	return model.DisplayRecord{
		Name:                   w.Entry.Name,
		Namespace:              w.Entry.Namespace,
		LocalQueue:             w.Entry.LocalQueueName,
		Priority:               w.Entry.Priority,
		PositionInClusterQueue: w.Entry.PositionInClusterQueue,
		PositionInLocalQueue:   w.Entry.PositionInLocalQueue,
		Active:                 w.Active,
		Owner:                  w.Entry.Owner,
		SubmittedAt:            w.Entry.CreationTimestamp,
		DetailState:            query.StatePending.String(),
		OwnerState:             query.StatePending.String(),
	}
}

// health reports the state of every query feeding the snapshot. A ready
// list with any cluster queue not ready is reported as partial data.
func (b *SnapshotBuilder) health(queues []model.LocalQueueInfo, in Inputs) model.ObserverHealth {
	h := model.ObserverHealth{
		QueueListState:      in.Queues.State().String(),
		PendingSummaryState: make(map[string]string),
		ActiveErrors:        []string{},
	}

	partial := false
	for _, cq := range topology.ClusterQueues(queues) {
		r := in.PendingFor(cq)
		h.PendingSummaryState[cq] = r.State().String()
		if !r.IsReady() {
			partial = true
		}
	}

	if b.errorCollector != nil {
		if partial {
			b.errorCollector.Report(obserrors.ObserverError{
				Code:      obserrors.ErrPartialData,
				Message:   "some cluster queues have no pending workloads summary",
				Component: Component,
				Timestamp: b.clock.Now().UnixMilli(),
			})
		} else if in.Queues.IsReady() {
			b.errorCollector.Resolve(Component)
		}
		h.ActiveErrors = b.errorCollector.GetActiveErrorCodes()
	}
	return h
}
