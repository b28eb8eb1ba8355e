package kueue

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	kueuev1beta1 "sigs.k8s.io/kueue/apis/kueue/v1beta1"
	visibilityv1beta1 "sigs.k8s.io/kueue/apis/visibility/v1beta1"

	"github.com/kubeadapt/kueue-observer/internal/convert"
	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// Getter issues a GET and decodes the JSON body into out.
// *transport.Client implements it.
type Getter interface {
	Get(ctx context.Context, path string, out any) error
}

// API abstracts the observed Kueue API for testability.
type API interface {
	ListLocalQueues(ctx context.Context) ([]model.LocalQueueInfo, error)
	PendingWorkloads(ctx context.Context, clusterQueue string) ([]model.PendingWorkloadEntry, error)
	GetWorkload(ctx context.Context, namespace, name string) (model.WorkloadDetail, error)
	GetOwner(ctx context.Context, namespace string, ref model.OwnerReference) (model.OwnerObject, error)
}

// Client implements API over a Getter.
type Client struct {
	getter Getter
	paths  Paths
}

// NewClient creates a Client.
func NewClient(getter Getter, paths Paths) *Client {
	return &Client{getter: getter, paths: paths}
}


// ListLocalQueues lists LocalQueues across all namespaces, in server order.
func (c *Client) ListLocalQueues(ctx context.Context) ([]model.LocalQueueInfo, error) {
	var list kueuev1beta1.LocalQueueList
	if err := c.getter.Get(ctx, c.paths.LocalQueues(), &list); err != nil {
		return nil, err
	}
	return convert.LocalQueueListToModel(&list), nil
}

// PendingWorkloads reads the pending workloads summary of a cluster queue.
func (c *Client) PendingWorkloads(ctx context.Context, clusterQueue string) ([]model.PendingWorkloadEntry, error) {
	var summary visibilityv1beta1.PendingWorkloadsSummary
	if err := c.getter.Get(ctx, c.paths.PendingWorkloads(clusterQueue), &summary); err != nil {
		return nil, err
	}
	return convert.PendingSummaryToModel(&summary), nil
}

// GetWorkload reads one Workload.
func (c *Client) GetWorkload(ctx context.Context, namespace, name string) (model.WorkloadDetail, error) {
	var wl kueuev1beta1.Workload
	if err := c.getter.Get(ctx, c.paths.Workload(namespace, name), &wl); err != nil {
		return model.WorkloadDetail{}, err
	}
	return convert.WorkloadToDetail(&wl), nil
}

// GetOwner reads the owner object a workload references.
func (c *Client) GetOwner(ctx context.Context, namespace string, ref model.OwnerReference) (model.OwnerObject, error) {
	var obj map[string]any
	if err := c.getter.Get(ctx, OwnerPath(ref, namespace), &obj); err != nil {
		return model.OwnerObject{}, err
	}
	return convert.OwnerToModel(&unstructured.Unstructured{Object: obj}), nil
}
