package papersources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// Registry manages source adapters.
// It provides thread-safe registration and lookup so that one registry can
// serve concurrent runs.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.SourceID]Adapter
}

// NewRegistry creates a new registry with an empty adapter map.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[domain.SourceID]Adapter),
	}
}

// Register adds an adapter to the registry.
// If an adapter with the same source ID already exists, it will be replaced.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.SourceID()] = adapter
}

// Get returns the adapter for a source, or nil if not found.
func (r *Registry) Get(id domain.SourceID) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[id]
}

// All returns all registered adapters sorted by source ID.
// The returned slice is a snapshot.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapters := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	sort.Slice(adapters, func(i, j int) bool {
		return adapters[i].SourceID() < adapters[j].SourceID()
	})
	return adapters
}

// Enabled returns the IDs of all enabled adapters sorted by source ID.
func (r *Registry) Enabled() []domain.SourceID {
	var ids []domain.SourceID
	for _, a := range r.All() {
		if a.IsEnabled() {
			ids = append(ids, a.SourceID())
		}
	}
	return ids
}

// Resolve returns the adapters for the requested sources in the given order.
// It fails if any source is unregistered or disabled, which lets a run
// reject a bad query before fetching anything.
func (r *Registry) Resolve(ids []domain.SourceID) ([]Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, 0, len(ids))
	seen := make(map[domain.SourceID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		a, ok := r.adapters[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotRegistered, id)
		}
		if !a.IsEnabled() {
			return nil, fmt.Errorf("%w: %s is disabled or missing credentials", domain.ErrSourceNotRegistered, id)
		}
		out = append(out, a)
	}
	return out, nil
}
