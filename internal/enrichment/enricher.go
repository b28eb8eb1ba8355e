package enrichment

import (
	"context"
	"time"

	obserrors "github.com/kubeadapt/kueue-observer/internal/errors"
	"github.com/kubeadapt/kueue-observer/internal/kueue"
	"github.com/kubeadapt/kueue-observer/internal/observability"
	"github.com/kubeadapt/kueue-observer/internal/query"
	"github.com/kubeadapt/kueue-observer/pkg/model"
)

// Cache names, also used as metric labels.
const (
	WorkloadCacheName = "workloads"
	OwnerCacheName    = "owners"
)

// Config configures an Enricher.
type Config struct {
	SubmitterLabel string
	RetryInterval  time.Duration
	RequestTimeout time.Duration
}

// Enricher fetches workload details and owners on demand and joins
// whatever has landed.
type Enricher struct {
	api       kueue.API
	workloads *query.Cache[model.WorkloadDetail]
	owners    *query.Cache[model.OwnerObject]
	pipeline  *Pipeline
	clock     obserrors.Clock
}

// NewEnricher creates an Enricher. clock may be nil.
func NewEnricher(api kueue.API, cfg Config, metrics *observability.Metrics, errs *obserrors.ErrorCollector, clock obserrors.Clock) *Enricher {
	if clock == nil {
		clock = obserrors.RealClock{}
	}
	if cfg.SubmitterLabel == "" {
		cfg.SubmitterLabel = DefaultSubmitterLabel
	}
	return &Enricher{
		api: api,
		workloads: query.NewCache[model.WorkloadDetail](query.CacheConfig{
			Name:          WorkloadCacheName,
			RetryInterval: cfg.RetryInterval,
			Timeout:       cfg.RequestTimeout,
		}, metrics, errs, clock),
		owners: query.NewCache[model.OwnerObject](query.CacheConfig{
			Name:          OwnerCacheName,
			RetryInterval: cfg.RetryInterval,
			Timeout:       cfg.RequestTimeout,
		}, metrics, errs, clock),
		pipeline: NewPipeline(metrics, DefaultSteps(cfg.SubmitterLabel)...),
		clock:    clock,
	}
}

// Enrich triggers the detail and owner fetches of queued without waiting
// for them, then joins the results available now. ctx bounds the fetches,
// not the call.
func (e *Enricher) Enrich(ctx context.Context, queued model.QueuedWorkload) model.DisplayRecord {
	entry := queued.Entry

	wkey := entry.WorkloadKey()
	e.workloads.Ensure(ctx, wkey, func(ctx context.Context) (model.WorkloadDetail, error) {
		return e.api.GetWorkload(ctx, entry.Namespace, entry.Name)
	})
	in := Inputs{
		Detail: e.workloads.Get(wkey),
		Owner:  query.Pending[model.OwnerObject](),
		Now:    e.clock.Now(),
	}

	if entry.Owner != nil {
		ref := *entry.Owner
		okey := entry.OwnerKey()
		e.owners.Ensure(ctx, okey, func(ctx context.Context) (model.OwnerObject, error) {
			return e.api.GetOwner(ctx, entry.Namespace, ref)
		})
		in.Owner = e.owners.Get(okey)
	}

	return e.pipeline.Join(queued, in)
}

// Retain evicts cached details and owners of workloads no longer visible.
func (e *Enricher) Retain(workloadKeys, ownerKeys []string) int {
	return e.workloads.Retain(workloadKeys) + e.owners.Retain(ownerKeys)
}

// CacheSizes returns the slot count of each cache, keyed by cache name.
func (e *Enricher) CacheSizes() map[string]int {
	return map[string]int{
		WorkloadCacheName: len(e.workloads.Keys()),
		OwnerCacheName:    len(e.owners.Keys()),
	}
}

// WorkloadKeys returns the keys of cached workload details.
func (e *Enricher) WorkloadKeys() []string { return e.workloads.Keys() }

// OwnerKeys returns the keys of cached owners.
func (e *Enricher) OwnerKeys() []string { return e.owners.Keys() }

// Wait blocks until all in-flight fetches have landed.
func (e *Enricher) Wait() {
	e.workloads.Wait()
	e.owners.Wait()
}
