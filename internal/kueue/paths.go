// Package kueue describes the observed Kueue resources: the request paths
// the observer reads and typed fetchers over them.
package kueue

import (
	"net/url"
	"strings"

	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// Default group versions.
const (
	DefaultQueueGroupVersion      = "kueue.x-k8s.io/v1beta1"
	DefaultVisibilityGroupVersion = "visibility.kueue.x-k8s.io/v1beta1"
)

// Paths builds request paths for the queueing and visibility API groups.
type Paths struct {
	QueueGroupVersion      string
	VisibilityGroupVersion string
}

// LocalQueues returns the cluster-wide LocalQueue list path.
func (p Paths) LocalQueues() string {
	return "/apis/" + p.QueueGroupVersion + "/localqueues"
}

// PendingWorkloads returns the pending workloads summary path of a cluster queue.
func (p Paths) PendingWorkloads(clusterQueue string) string {
	return "/apis/" + p.VisibilityGroupVersion + "/clusterqueues/" + url.PathEscape(clusterQueue) + "/pendingworkloads"
}

// Workload returns the path of one Workload.
func (p Paths) Workload(namespace, name string) string {
	return "/apis/" + p.QueueGroupVersion + "/namespaces/" + url.PathEscape(namespace) + "/workloads/" + url.PathEscape(name)
}

// ResourceForKind maps an owner kind to its resource path segment by
// lower-casing and appending "s" ("Job" -> "jobs").
//
// Irregular plurals ("Endpoints", "Policy") come out wrong. This is the only
// place the rule lives.
func ResourceForKind(kind string) string {
	return strings.ToLower(kind) + "s"
}

// OwnerPath returns the path of a workload's owner object in namespace.
func OwnerPath(ref model.OwnerReference, namespace string) string {
	return "/apis/" + ref.APIVersion + "/namespaces/" + url.PathEscape(namespace) + "/" +
		ResourceForKind(ref.Kind) + "/" + url.PathEscape(ref.Name)
}

// OwnerDisplayPath renders an owner reference as "<resource>.<apiVersion>/<name>",
// e.g. "jobs.batch/v1/train".
func OwnerDisplayPath(ref model.OwnerReference) string {
	return ResourceForKind(ref.Kind) + "." + ref.APIVersion + "/" + ref.Name
}
