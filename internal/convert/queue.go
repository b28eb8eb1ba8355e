package convert

import (
	kueue "sigs.k8s.io/kueue/apis/kueue/v1beta1"
	visibility "sigs.k8s.io/kueue/apis/visibility/v1beta1"

	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// LocalQueueToModel converts a Kueue LocalQueue to model.LocalQueueInfo.
func LocalQueueToModel(lq *kueue.LocalQueue) model.LocalQueueInfo {
	return model.LocalQueueInfo{
		Name:         lq.Name,
		Namespace:    lq.Namespace,
		UID:          string(lq.UID),
		ClusterQueue: string(lq.Spec.ClusterQueue),
	}
}

// LocalQueueListToModel converts a list, preserving item order.
func LocalQueueListToModel(list *kueue.LocalQueueList) []model.LocalQueueInfo {
	out := make([]model.LocalQueueInfo, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, LocalQueueToModel(&list.Items[i]))
	}
	return out
}

// PendingWorkloadToModel converts one pending workloads summary item.
// Owner is ownerReferences[0] of the item, nil when it has none.
func PendingWorkloadToModel(pw *visibility.PendingWorkload) model.PendingWorkloadEntry {
	entry := model.PendingWorkloadEntry{
		Name:                   pw.Name,
		Namespace:              pw.Namespace,
		LocalQueueName:         string(pw.LocalQueueName),
		Priority:               pw.Priority,
		PositionInClusterQueue: pw.PositionInClusterQueue,
		PositionInLocalQueue:   pw.PositionInLocalQueue,
		CreationTimestamp:      pw.CreationTimestamp.UnixMilli(),
	}

	// Owner: immediate ownerReferences[0] only
	if len(pw.OwnerReferences) > 0 {
		ref := pw.OwnerReferences[0]
		entry.Owner = &model.OwnerReference{
			APIVersion: ref.APIVersion,
			Kind:       ref.Kind,
			Name:       ref.Name,
			UID:        string(ref.UID),
		}
	}

	return entry
}

// PendingSummaryToModel converts a summary, preserving the upstream item order.
func PendingSummaryToModel(summary *visibility.PendingWorkloadsSummary) []model.PendingWorkloadEntry {
	out := make([]model.PendingWorkloadEntry, 0, len(summary.Items))
	for i := range summary.Items {
		out = append(out, PendingWorkloadToModel(&summary.Items[i]))
	}
	return out
}
