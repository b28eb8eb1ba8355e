// Package enrichment joins a queued workload with its workload detail and
// owner object into a display record.
package enrichment

import (
	"log/slog"
	"time"

	"github.com/kubeadapt/kueue-observer/internal/kueue"
	"github.com/kubeadapt/kueue-observer/internal/observability"
	"github.com/kubeadapt/kueue-observer/internal/query"
	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// OwnerStateNone is the owner state of a workload without an owner reference.
const OwnerStateNone = "none"

// Inputs are the per-workload results a join reads. Either may be pending
// or errored; the fields it feeds are then left blank.
type Inputs struct {
	Detail query.Result[model.WorkloadDetail]
	Owner  query.Result[model.OwnerObject]
	Now    time.Time
}

// Step fills part of a display record from one input.
type Step interface {
	Name() string
	Apply(rec *model.DisplayRecord, in Inputs) error
}

// Pipeline runs a sequence of steps against a display record.
type Pipeline struct {
	steps   []Step
	metrics *observability.Metrics
}

// NewPipeline creates a pipeline that runs the given steps in order.
func NewPipeline(metrics *observability.Metrics, steps ...Step) *Pipeline {
	return &Pipeline{
		steps:   steps,
		metrics: metrics,
	}
}

// DefaultSteps returns the resources, submitter, and age steps.
func DefaultSteps(submitterLabel string) []Step {
	return []Step{
		ResourcesStep{},
		SubmitterStep{Label: submitterLabel},
		AgeStep{},
	}
}

// Join builds the display record of queued from in. If a step fails, it
// logs a warning and continues with the remaining steps.
func (p *Pipeline) Join(queued model.QueuedWorkload, in Inputs) model.DisplayRecord {
	rec := baseRecord(queued)
	rec.DetailState = in.Detail.State().String()
	if queued.Entry.Owner == nil {
		rec.OwnerState = OwnerStateNone
	} else {
		rec.OwnerState = in.Owner.State().String()
	}

	for _, s := range p.steps {
		start := time.Now()
		if err := s.Apply(&rec, in); err != nil {
			slog.Warn("enrichment step failed", "step", s.Name(), "workload", queued.Entry.WorkloadKey(), "error", err)
		}
		if p.metrics != nil {
			p.metrics.EnricherDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
		}
	}
	return rec
}

// Join builds a display record with the default steps and submitter label.
func Join(queued model.QueuedWorkload, in Inputs) model.DisplayRecord {
	return NewPipeline(nil, DefaultSteps(DefaultSubmitterLabel)...).Join(queued, in)
}

func baseRecord(q model.QueuedWorkload) model.DisplayRecord {
	e := q.Entry
	rec := model.DisplayRecord{
		Name:                   e.Name,
		Namespace:              e.Namespace,
		LocalQueue:             e.LocalQueueName,
		Priority:               e.Priority,
		PositionInClusterQueue: e.PositionInClusterQueue,
		PositionInLocalQueue:   e.PositionInLocalQueue,
		Active:                 q.Active,
		SubmittedAt:            e.CreationTimestamp,
	}
	if e.Owner != nil {
		owner := *e.Owner
		rec.Owner = &owner
		rec.OwnerPath = kueue.OwnerDisplayPath(owner)
	}
	return rec
}
