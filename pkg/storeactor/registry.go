package storeactor

import (
	"sync"

	"github.com/cuemby/storebroker/pkg/metrics"
)

// Registry tracks every store actor live in a process, so
// metrics.Collector can poll them without importing this package
// (metrics.StatsProvider is satisfied structurally by *Registry).
type Registry struct {
	mu     sync.RWMutex
	actors map[string]*Actor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{actors: make(map[string]*Actor)}
}

// Add registers a running actor under its store name.
func (r *Registry) Add(a *Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors[a.storeName] = a
}

// Remove drops a store name from the registry, normally called after
// the actor's Run has returned.
func (r *Registry) Remove(storeName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actors, storeName)
}

// Get returns the actor registered for storeName, if any.
func (r *Registry) Get(storeName string) (*Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actors[storeName]
	return a, ok
}

// StoreStats implements metrics.StatsProvider.
func (r *Registry) StoreStats() []metrics.StoreSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]metrics.StoreSnapshot, 0, len(r.actors))
	for _, a := range r.actors {
		out = append(out, a.Stats())
	}
	return out
}
