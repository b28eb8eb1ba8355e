package kueue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kubeadapt/kueue-observer/pkg/model"
)

func TestPaths(t *testing.T) {
	p := Paths{
		QueueGroupVersion:      DefaultQueueGroupVersion,
		VisibilityGroupVersion: "visibility.kueue.x-k8s.io/v1alpha1",
	}

	assert.Equal(t, "/apis/kueue.x-k8s.io/v1beta1/localqueues", p.LocalQueues())
	assert.Equal(t, "/apis/visibility.kueue.x-k8s.io/v1alpha1/clusterqueues/cq-shared/pendingworkloads", p.PendingWorkloads("cq-shared"))
	assert.Equal(t, "/apis/kueue.x-k8s.io/v1beta1/namespaces/team-a/workloads/job-w1", p.Workload("team-a", "job-w1"))
}

func TestResourceForKind(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"Job", "jobs"},
		{"RayJob", "rayjobs"},
		{"JobSet", "jobsets"},
		{"PyTorchJob", "pytorchjobs"},
		// Known limitation: irregular plurals are not special-cased.
		{"Endpoints", "endpointss"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResourceForKind(tt.kind), "kind %s", tt.kind)
	}
}

func TestOwnerPath(t *testing.T) {
	ref := model.OwnerReference{APIVersion: "batch/v1", Kind: "Job", Name: "train"}

	assert.Equal(t, "/apis/batch/v1/namespaces/team-a/jobs/train", OwnerPath(ref, "team-a"))
	assert.Equal(t, "jobs.batch/v1/train", OwnerDisplayPath(ref))
}

func TestOwnerPath_CustomGroup(t *testing.T) {
	ref := model.OwnerReference{APIVersion: "ray.io/v1", Kind: "RayJob", Name: "tune"}

	assert.Equal(t, "/apis/ray.io/v1/namespaces/ml/rayjobs/tune", OwnerPath(ref, "ml"))
}
