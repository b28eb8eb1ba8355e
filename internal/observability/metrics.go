package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for observer self-monitoring.
// It uses a custom registry to avoid polluting the global default.
type Metrics struct {
	Registry *prometheus.Registry

	// Query metrics
	QueryDuration  *prometheus.HistogramVec
	QueryTotal     *prometheus.CounterVec
	StaleDiscarded *prometheus.CounterVec

	// Cache metrics
	CacheSlots *prometheus.GaugeVec

	// Snapshot metrics
	SnapshotBuildDuration prometheus.Histogram
	GraphNodes            prometheus.Gauge
	GraphEdges            prometheus.Gauge
	PendingWorkloads      prometheus.Gauge

	// Enrichment metrics
	EnricherDuration *prometheus.HistogramVec

	// Transport metrics
	TransportRetries prometheus.Counter

	// State metrics
	ObserverState *prometheus.GaugeVec

	// Server metrics
	WebsocketClients prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all Prometheus metrics
// registered on a custom registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	// Polls are 1s apart, so anything past 2.5s is already a missed cycle.
	queryBuckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

	m := &Metrics{
		Registry: reg,

		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kueue_observer_query_duration_seconds",
			Help:    "Duration of queries against the observed API in seconds.",
			Buckets: queryBuckets,
		}, []string{"resource"}),
		QueryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kueue_observer_query_total",
			Help: "Total number of queries against the observed API.",
		}, []string{"resource", "status"}),
		StaleDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kueue_observer_query_stale_discarded_total",
			Help: "Total number of query results discarded because a newer poll already landed.",
		}, []string{"resource"}),

		CacheSlots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kueue_observer_cache_slots",
			Help: "Current number of keyed result slots.",
		}, []string{"cache"}),

		SnapshotBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kueue_observer_snapshot_build_duration_seconds",
			Help:    "Duration of snapshot build operations in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kueue_observer_graph_nodes",
			Help: "Number of nodes in the latest topology graph.",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kueue_observer_graph_edges",
			Help: "Number of edges in the latest topology graph.",
		}),
		PendingWorkloads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kueue_observer_pending_workloads",
			Help: "Number of pending workloads across all visible local queues in the latest snapshot.",
		}),

		EnricherDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kueue_observer_enricher_duration_seconds",
			Help:    "Duration of enricher steps in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"enricher"}),

		TransportRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kueue_observer_transport_retries_total",
			Help: "Total number of transport retry attempts.",
		}),

		ObserverState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kueue_observer_state",
			Help: "Current observer state (1 = active, 0 = inactive).",
		}, []string{"state"}),

		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kueue_observer_websocket_clients",
			Help: "Number of connected snapshot stream clients.",
		}),
	}

	// Register all metrics with the custom registry.
	reg.MustRegister(
		m.QueryDuration,
		m.QueryTotal,
		m.StaleDiscarded,
		m.CacheSlots,
		m.SnapshotBuildDuration,
		m.GraphNodes,
		m.GraphEdges,
		m.PendingWorkloads,
		m.EnricherDuration,
		m.TransportRetries,
		m.ObserverState,
		m.WebsocketClients,
	)

	return m
}
