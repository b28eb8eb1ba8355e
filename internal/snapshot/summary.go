package snapshot

import (
	"github.com/kubeadapt/kueue-observer/internal/query"
	"github.com/kubeadapt/kueue-observer/internal/topology"
	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// ComputeSummary calculates entity and workload counts from a snapshot and
// the local queue list it was built from.
func ComputeSummary(snapshot *model.ObserverSnapshot, queues []model.LocalQueueInfo) model.ObserverSummary {
	s := model.ObserverSummary{
		NamespaceCount:    len(topology.Namespaces(queues)),
		LocalQueueCount:   len(queues),
		ClusterQueueCount: len(topology.ClusterQueues(queues)),
	}

	ready := query.StateReady.String()
	for i := range snapshot.Queues {
		for j := range snapshot.Queues[i].Workloads {
			w := &snapshot.Queues[i].Workloads[j]
			s.PendingWorkloadCount++
			if w.Active {
				s.ActiveWorkloadCount++
			}
			if w.DetailState == ready {
				s.EnrichedWorkloadCount++
			}
		}
	}
	return s
}
