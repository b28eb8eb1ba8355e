// Package admission derives the admission order of a local queue from its
// cluster queue's pending workloads summary.
package admission

import (
	"cmp"
	"slices"

	"github.com/kubeadapt/kueue-observer/internal/query"
	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// View returns the entries queued in local queue namespace/localQueue,
// ordered by position in the local queue. Equal positions keep their
// upstream order. A workload is Active when it heads its cluster queue.
//
// The returned slice is never nil.
func View(entries []model.PendingWorkloadEntry, namespace, localQueue string) []model.QueuedWorkload {
	out := make([]model.QueuedWorkload, 0)
	for _, e := range entries {
		if e.Namespace != namespace || e.LocalQueueName != localQueue {
			continue
		}
		out = append(out, model.QueuedWorkload{
			Entry:  e,
			Active: e.PositionInClusterQueue == 0,
		})
	}
	slices.SortStableFunc(out, func(a, b model.QueuedWorkload) int {
		return cmp.Compare(a.Entry.PositionInLocalQueue, b.Entry.PositionInLocalQueue)
	})
	return out
}

// ViewOf is View over a query result. Pending and errored results yield an
// empty view.
func ViewOf(r query.Result[[]model.PendingWorkloadEntry], namespace, localQueue string) []model.QueuedWorkload {
	entries, ok := r.Data()
	if !ok {
		return []model.QueuedWorkload{}
	}
	return View(entries, namespace, localQueue)
}
