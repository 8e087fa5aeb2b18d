// Package registry provides the lookup table of content sources.
package registry

import (
	"fmt"
	"sync"

	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/logging"
	"media-source-go/pkg/sourceerr"
	"media-source-go/pkg/types"
)

// SourceRegistry manages content sources keyed by id, in registration order.
type SourceRegistry struct {
	mu      sync.RWMutex
	sources []interfaces.Source
	byID    map[string]interfaces.Source
	log     *logging.Logger
}

// NewSourceRegistry creates a new source registry.
func NewSourceRegistry(log *logging.Logger) *SourceRegistry {
	if log == nil {
		log = logging.Discard()
	}
	return &SourceRegistry{
		sources: make([]interfaces.Source, 0),
		byID:    make(map[string]interfaces.Source),
		log:     log.WithComponent("registry"),
	}
}

// Register adds a source. Ids must be unique.
func (r *SourceRegistry) Register(src interfaces.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := src.ID()
	if id == "" {
		return fmt.Errorf("register source %q: empty id", src.Name())
	}
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("register source %q: duplicate id", id)
	}
	r.sources = append(r.sources, src)
	r.byID[id] = src
	r.log.Info("source registered",
		"source", id,
		"name", src.Name(),
		"search", src.SupportsSearch(),
		"category", src.SupportsCategory(),
		"timeline", src.SupportsTimeline(),
	)
	return nil
}

// Get returns the source registered under id.
func (r *SourceRegistry) Get(id string) (interfaces.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.byID[id]
	return src, ok
}

// Require returns the source registered under id or an unknown-source error.
func (r *SourceRegistry) Require(id string) (interfaces.Source, error) {
	if src, ok := r.Get(id); ok {
		return src, nil
	}
	return nil, sourceerr.UnknownSource(id)
}

// All returns all registered sources.
func (r *SourceRegistry) All() []interfaces.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]interfaces.Source, len(r.sources))
	copy(result, r.sources)
	return result
}

// Infos summarises every registered source with its capabilities.
func (r *SourceRegistry) Infos() []types.SourceInfo {
	all := r.All()
	out := make([]types.SourceInfo, 0, len(all))
	for _, src := range all {
		out = append(out, Info(src))
	}
	return out
}

// Info summarises one source.
func Info(src interfaces.Source) types.SourceInfo {
	return types.SourceInfo{
		ID:   src.ID(),
		Name: src.Name(),
		Capabilities: types.Capabilities{
			Search:   src.SupportsSearch(),
			Category: src.SupportsCategory(),
			Timeline: src.SupportsTimeline(),
		},
	}
}

var _ interfaces.Registry[interfaces.Source] = (*SourceRegistry)(nil)
