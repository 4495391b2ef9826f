package collectors

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry manages a set of collectors keyed by source ID. It is safe
// for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]Collector
	statuses   map[string]*Status
}

// NewRegistry returns an empty registry ready for collector registration.
func NewRegistry() *Registry {
	return &Registry{
		collectors: make(map[string]Collector),
		statuses:   make(map[string]*Status),
	}
}

// Register adds a collector to the registry. It returns an error if a
// collector with the same source ID is already registered.
func (r *Registry) Register(c Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.SourceID()
	if _, exists := r.collectors[id]; exists {
		return fmt.Errorf("source %q already registered", id)
	}

	r.collectors[id] = c
	r.statuses[id] = &Status{
		SourceID: id,
		Healthy:  true,
	}
	return nil
}

// Deregister removes a collector by source ID. It is a no-op if the ID
// is not found.
func (r *Registry) Deregister(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.collectors, sourceID)
	delete(r.statuses, sourceID)
}

// Get returns the collector for the given source ID, or false if not
// found.
func (r *Registry) Get(sourceID string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collectors[sourceID]
	return c, ok
}

// List returns a sorted slice of all registered source IDs.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.collectors))
	for id := range r.collectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Status returns a copy of the runtime status for the named source, or
// false if it is not registered.
func (r *Registry) Status(sourceID string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.statuses[sourceID]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

// AllStatus returns a copy of all source statuses, sorted by source ID.
func (r *Registry) AllStatus() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Status, 0, len(r.statuses))
	for _, s := range r.statuses {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SourceID < result[j].SourceID
	})
	return result
}

// RecordRun updates the status entry for the named source after one
// poll. It is a no-op if the source was deregistered mid-cycle.
func (r *Registry) RecordRun(sourceID string, runErr error, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.statuses[sourceID]
	if !ok {
		return
	}
	s.LastRun = time.Now()
	s.LastLatency = latency
	s.RunCount++
	s.LastError = runErr
	if runErr != nil {
		s.ErrorCount++
		s.Healthy = false
	} else {
		s.Healthy = true
	}
}
