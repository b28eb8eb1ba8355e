package enrichment

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	corev1 "k8s.io/api/core/v1"

	"github.com/kubeadapt/kueue-observer/internal/convert"
	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// DefaultSubmitterLabel is the owner label naming who submitted a workload.
const DefaultSubmitterLabel = "x-jobby.io/submitter"

// ResourcesStep reads the CPU and memory limits of the first container of
// the first pod set.
type ResourcesStep struct{}

// Name returns the step name.
func (ResourcesStep) Name() string { return "resources" }

// Apply fills the limit fields when the detail is ready.
func (ResourcesStep) Apply(rec *model.DisplayRecord, in Inputs) error {
	detail, ok := in.Detail.Data()
	if !ok || len(detail.PodSets) == 0 || len(detail.PodSets[0].Containers) == 0 {
		return nil
	}
	limits := detail.PodSets[0].Containers[0].Limits

	var err error
	if cpu := limits[string(corev1.ResourceCPU)]; cpu != "" {
		rec.CPULimit = cpu
		rec.CPUCores = convert.ParseCPUCores(cpu)
		if rec.CPUCores == nil {
			err = fmt.Errorf("unparsable cpu limit %q", cpu)
		}
	}
	if mem := limits[string(corev1.ResourceMemory)]; mem != "" {
		rec.MemoryLimit = mem
		rec.MemoryBytes = convert.ParseMemoryBytes(mem)
		if rec.MemoryBytes == nil && err == nil {
			err = fmt.Errorf("unparsable memory limit %q", mem)
		}
	}
	return err
}

// SubmitterStep reads the submitter label of the owner object.
type SubmitterStep struct {
	Label string
}

// Name returns the step name.
func (SubmitterStep) Name() string { return "submitter" }

// Apply fills Submitter when the owner is ready. A missing label is not an error.
func (s SubmitterStep) Apply(rec *model.DisplayRecord, in Inputs) error {
	owner, ok := in.Owner.Data()
	if !ok || rec.Owner == nil {
		return nil
	}
	rec.Submitter = owner.Labels[s.Label]
	return nil
}

// AgeStep renders the submission time relative to Inputs.Now.
type AgeStep struct{}

// Name returns the step name.
func (AgeStep) Name() string { return "age" }

// Apply fills SubmittedAgo, e.g. "5 minutes ago".
func (AgeStep) Apply(rec *model.DisplayRecord, in Inputs) error {
	if rec.SubmittedAt == 0 || in.Now.IsZero() {
		return nil
	}
	submitted := time.UnixMilli(rec.SubmittedAt)
	rec.SubmittedAgo = humanize.RelTime(submitted, in.Now, "ago", "from now")
	return nil
}
