package collector

import "context"

// Collector is the interface that all pollers implement.
type Collector interface {
	// Name returns the collector's name (e.g., "localqueues", "pending/cq-gpu").
	// Names are unique within a Registry.
	Name() string
	// Start begins polling in the background. It must not block on the first fetch.
	Start(ctx context.Context) error
	// WaitForSync waits for the first result to land.
	WaitForSync(ctx context.Context) error
	// Stop stops the collector and cleans up resources.
	Stop()
}
