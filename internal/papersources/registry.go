package papersources

import (
	"sync"

	"github.com/helixir/paper-search-service/internal/domain"
)

// Registry holds paper sources in registration order. The order is the
// provider-major order used when fan-out results are concatenated, so it
// must be stable for a given configuration.
type Registry struct {
	mu      sync.RWMutex
	order   []domain.SourceType
	sources map[domain.SourceType]PaperSource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]PaperSource),
	}
}

// Register adds a source. Registering a type again replaces the source but
// keeps its original position.
func (r *Registry) Register(source PaperSource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := source.SourceType()
	if _, ok := r.sources[st]; !ok {
		r.order = append(r.order, st)
	}
	r.sources[st] = source
}

// Get returns a source by type, or nil if not found.
func (r *Registry) Get(sourceType domain.SourceType) PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// AllSources returns all registered sources in registration order.
func (r *Registry) AllSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.order))
	for _, st := range r.order {
		sources = append(sources, r.sources[st])
	}
	return sources
}

// EnabledSources returns enabled sources in registration order.
func (r *Registry) EnabledSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.order))
	for _, st := range r.order {
		if s := r.sources[st]; s.IsEnabled() {
			sources = append(sources, s)
		}
	}
	return sources
}
