package convert

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	kueue "sigs.k8s.io/kueue/apis/kueue/v1beta1"

	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// WorkloadToDetail converts a Kueue Workload to model.WorkloadDetail.
// Pure function, no side effects.
func WorkloadToDetail(wl *kueue.Workload) model.WorkloadDetail {
	detail := model.WorkloadDetail{
		Name:      wl.Name,
		Namespace: wl.Namespace,
		PodSets:   make([]model.PodSetDetail, 0, len(wl.Spec.PodSets)),
	}

	for _, ps := range wl.Spec.PodSets {
		detail.PodSets = append(detail.PodSets, model.PodSetDetail{
			Name:       string(ps.Name),
			Count:      ps.Count,
			Containers: extractContainerResources(ps.Template.Spec.Containers),
		})
	}

	return detail
}

func extractContainerResources(containers []corev1.Container) []model.ContainerResources {
	out := make([]model.ContainerResources, 0, len(containers))
	for _, c := range containers {
		out = append(out, model.ContainerResources{
			Name:     c.Name,
			Limits:   resourceListToMap(c.Resources.Limits),
			Requests: resourceListToMap(c.Resources.Requests),
		})
	}
	return out
}

// resourceListToMap renders quantities in their canonical string form.
func resourceListToMap(rl corev1.ResourceList) map[string]string {
	if len(rl) == 0 {
		return nil
	}
	m := make(map[string]string, len(rl))
	for name, q := range rl {
		m[string(name)] = q.String()
	}
	return m
}

// OwnerToModel trims an arbitrary owner object to model.OwnerObject.
func OwnerToModel(obj *unstructured.Unstructured) model.OwnerObject {
	return model.OwnerObject{
		APIVersion: obj.GetAPIVersion(),
		Kind:       obj.GetKind(),
		Name:       obj.GetName(),
		Namespace:  obj.GetNamespace(),
		Labels:     obj.GetLabels(),
	}
}
