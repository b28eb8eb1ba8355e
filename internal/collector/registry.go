package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry manages the lifecycle of all registered collectors.
// It is thread-safe: Register, Add, Remove, StartAll, WaitForSync, and
// StopAll can be called from different goroutines.
//
// Collectors registered before StartAll are started together. Once the
// registry is started, Add starts a collector immediately and Remove stops it.
type Registry struct {
	collectors []Collector
	mu         sync.Mutex
	started    bool
	ctx        context.Context
}

// NewRegistry creates a new, empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a collector to the registry without starting it.
// It returns false if a collector with the same name is already registered.
func (r *Registry) Register(c Collector) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(c.Name()) >= 0 {
		return false
	}
	r.collectors = append(r.collectors, c)
	return true
}

func (r *Registry) indexLocked(name string) int {
	for i, c := range r.collectors {
		if c.Name() == name {
			return i
		}
	}
	return -1
}

// Add registers c and, if the registry has been started, starts it with the
// context passed to StartAll. Adding a name that is already present is a no-op.
func (r *Registry) Add(c Collector) error {
	r.mu.Lock()
	if r.indexLocked(c.Name()) >= 0 {
		r.mu.Unlock()
		return nil
	}
	started, ctx := r.started, r.ctx
	r.mu.Unlock()

	if started {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start collector %s: %w", c.Name(), err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(c.Name()) >= 0 {
		// Lost a race with another Add of the same name.
		if started {
			c.Stop()
		}
		return nil
	}
	r.collectors = append(r.collectors, c)
	return nil
}

// Remove stops and unregisters the named collector. It reports whether a
// collector was removed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	i := r.indexLocked(name)
	if i < 0 {
		r.mu.Unlock()
		return false
	}
	c := r.collectors[i]
	r.collectors = append(r.collectors[:i], r.collectors[i+1:]...)
	started := r.started
	r.mu.Unlock()

	if started {
		c.Stop()
	}
	return true
}

// Get returns the named collector.
func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(name); i >= 0 {
		return r.collectors[i], true
	}
	return nil, false
}

// PartialStartError is returned when some (but not all) collectors fail to start.
// Callers can use errors.As to detect partial vs total failure.
type PartialStartError struct {
	Failed []string
	Total  int
}

func (e *PartialStartError) Error() string {
	return fmt.Sprintf("%d of %d collectors failed to start: %v", len(e.Failed), e.Total, e.Failed)
}

// StartAll starts all registered collectors in parallel using goroutines.
// Returns a PartialStartError if some collectors fail, or a plain error
// if all collectors fail.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	collectors := make([]Collector, len(r.collectors))
	copy(collectors, r.collectors)
	r.started = true
	r.ctx = ctx
	r.mu.Unlock()

	if len(collectors) == 0 {
		return nil
	}

	type result struct {
		name string
		err  error
	}

	results := make(chan result, len(collectors))
	var wg sync.WaitGroup

	for _, c := range collectors {
		wg.Add(1)
		go func(c Collector) {
			defer wg.Done()
			err := c.Start(ctx)
			results <- result{name: c.Name(), err: err}
		}(c)
	}

	// Close results channel after all goroutines finish.
	go func() {
		wg.Wait()
		close(results)
	}()

	var failedNames []string
	for res := range results {
		if res.err != nil {
			failedNames = append(failedNames, res.name)
			slog.Error("collector failed to start", "collector", res.name, "error", res.err)
		}
	}

	if len(failedNames) == len(collectors) {
		return fmt.Errorf("all %d collectors failed to start", len(failedNames))
	}
	if len(failedNames) > 0 {
		return &PartialStartError{Failed: failedNames, Total: len(collectors)}
	}

	return nil
}

// WaitForSync waits for all registered collectors to land their first result.
// Uses the context deadline/timeout. Returns an error if the context expires
// before all collectors sync.
func (r *Registry) WaitForSync(ctx context.Context) error {
	collectors := r.Collectors()

	if len(collectors) == 0 {
		return nil
	}

	errCh := make(chan error, len(collectors))
	var wg sync.WaitGroup

	for _, c := range collectors {
		wg.Add(1)
		go func(c Collector) {
			defer wg.Done()
			if err := c.WaitForSync(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", c.Name(), err)
			}
		}(c)
	}

	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		return fmt.Errorf("collector sync failed: %w", err)
	}

	return nil
}

// StopAll stops all registered collectors. Safe to call multiple times.
func (r *Registry) StopAll() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	collectors := make([]Collector, len(r.collectors))
	copy(collectors, r.collectors)
	r.started = false
	r.ctx = nil
	r.mu.Unlock()

	for _, c := range collectors {
		c.Stop()
	}
}

// Collectors returns the registered collectors in registration order.
func (r *Registry) Collectors() []Collector {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Collector, len(r.collectors))
	copy(out, r.collectors)
	return out
}

// Names returns the names of the registered collectors in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.collectors))
	for i, c := range r.collectors {
		names[i] = c.Name()
	}
	return names
}
