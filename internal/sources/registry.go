package sources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
)

// Registry maps source types to factories for constructing sources
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// NewDefaultRegistry creates a registry with the built-in source types registered
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(config.SourceTypeFitness, NewFitnessSource)
	r.Register(config.SourceTypeCalendar, NewCalendarSource)
	r.Register(config.SourceTypeFile, NewFileSource)
	return r
}

// Register adds a factory for the given source type, replacing any existing one
func (r *Registry) Register(sourceType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[sourceType] = factory
}

// Unregister removes the factory for the given source type
func (r *Registry) Unregister(sourceType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, sourceType)
}

// Get returns the factory for the given source type
func (r *Registry) Get(sourceType string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[sourceType]
	return factory, ok
}

// Create constructs a source from its configuration
func (r *Registry) Create(cfg *config.SourceConfig) (Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("source configuration cannot be nil")
	}

	factory, ok := r.Get(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, cfg.Type)
	}

	return factory(cfg)
}

// Types returns the registered source types, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
