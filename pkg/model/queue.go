package model

import "fmt"

// LocalQueueInfo represents a Kueue LocalQueue.
type LocalQueueInfo struct {
	Name         string `json:"name"`
	Namespace    string `json:"namespace"`
	UID          string `json:"uid"`
	ClusterQueue string `json:"cluster_queue"`
}

// Key returns the "namespace/name" identity of the local queue.
func (q LocalQueueInfo) Key() string {
	return q.Namespace + "/" + q.Name
}

// OwnerReference points from a workload to the object that created it.
type OwnerReference struct {
	APIVersion string `json:"api_version"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	UID        string `json:"uid"`
}

// PendingWorkloadEntry is one item of a cluster queue's pending workloads summary.
type PendingWorkloadEntry struct {
	Name                   string          `json:"name"`
	Namespace              string          `json:"namespace"`
	LocalQueueName         string          `json:"local_queue_name"`
	Priority               int32           `json:"priority"`
	PositionInClusterQueue int32           `json:"position_in_cluster_queue"`
	PositionInLocalQueue   int32           `json:"position_in_local_queue"`
	CreationTimestamp      int64           `json:"creation_timestamp"`
	Owner                  *OwnerReference `json:"owner,omitempty"`
}

// WorkloadKey identifies a workload detail slot.
func (e PendingWorkloadEntry) WorkloadKey() string {
	return e.Namespace + "/" + e.Name
}

// OwnerKey identifies an owner object slot. It returns "" when the entry has no owner.
func (e PendingWorkloadEntry) OwnerKey() string {
	if e.Owner == nil {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/%s", e.Owner.APIVersion, e.Owner.Kind, e.Namespace, e.Owner.Name)
}

// QueuedWorkload is a pending workload as placed in a local queue view.
type QueuedWorkload struct {
	Entry PendingWorkloadEntry `json:"entry"`
	// Active is set for the workload at the head of its cluster queue.
	Active bool `json:"active"`
}

// WorkloadDetail is the part of a Kueue Workload the observer reads.
type WorkloadDetail struct {
	Name      string         `json:"name"`
	Namespace string         `json:"namespace"`
	PodSets   []PodSetDetail `json:"pod_sets"`
}

// PodSetDetail is one pod set of a workload.
type PodSetDetail struct {
	Name       string               `json:"name"`
	Count      int32                `json:"count"`
	Containers []ContainerResources `json:"containers"`
}

// ContainerResources holds the resource requests and limits of a pod set container.
type ContainerResources struct {
	Name     string            `json:"name"`
	Limits   map[string]string `json:"limits,omitempty"`
	Requests map[string]string `json:"requests,omitempty"`
}

// OwnerObject is the owning object of a workload, trimmed to what is displayed.
type OwnerObject struct {
	APIVersion string            `json:"api_version"`
	Kind       string            `json:"kind"`
	Name       string            `json:"name"`
	Namespace  string            `json:"namespace"`
	Labels     map[string]string `json:"labels,omitempty"`
}
