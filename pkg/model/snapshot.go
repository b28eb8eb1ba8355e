package model

// ObserverSnapshot is the complete view rebuilt on every refresh cycle.
type ObserverSnapshot struct {
	// Identity
	SnapshotID      string `json:"snapshot_id"`
	ObserverID      string `json:"observer_id"`
	ObserverVersion string `json:"observer_version"`
	Timestamp       int64  `json:"timestamp"`

	// Topology is nil while the local queue list is not ready.
	Topology *Graph `json:"topology,omitempty"`

	Queues []QueueView `json:"queues"`

	// Computed
	Summary ObserverSummary `json:"summary"`

	// Observer health
	Health ObserverHealth `json:"health"`
}

// ObserverSummary holds computed counts for a snapshot.
type ObserverSummary struct {
	NamespaceCount        int `json:"namespace_count"`
	LocalQueueCount       int `json:"local_queue_count"`
	ClusterQueueCount     int `json:"cluster_queue_count"`
	PendingWorkloadCount  int `json:"pending_workload_count"`
	ActiveWorkloadCount   int `json:"active_workload_count"`
	EnrichedWorkloadCount int `json:"enriched_workload_count"`
}

// ObserverHealth reports the state of every query feeding the snapshot.
type ObserverHealth struct {
	QueueListState      string            `json:"queue_list_state"`
	PendingSummaryState map[string]string `json:"pending_summary_state"`
	ActiveErrors        []string          `json:"active_errors"`
}

// Queue returns the view of the given local queue, or nil.
func (s *ObserverSnapshot) Queue(namespace, name string) *QueueView {
	for i := range s.Queues {
		if s.Queues[i].Namespace == namespace && s.Queues[i].Name == name {
			return &s.Queues[i]
		}
	}
	return nil
}
