// Package provider adapts external audio platforms to one search and stream
// resolution contract.
package provider

import (
	"context"
	"errors"
	"sync"

	"tunemux/model"
)

// ErrProvider marks a failure inside one source: transport, status or payload.
var ErrProvider = errors.New("provider error")

// SourceProvider is one external audio platform.
type SourceProvider interface {
	Name() model.Source
	Search(ctx context.Context, query string) ([]model.Track, error)
	ResolveStreamURL(ctx context.Context, id string) (string, error)
}

// TrendingProvider is a SourceProvider with a native trending feed.
type TrendingProvider interface {
	SourceProvider
	Trending(ctx context.Context) ([]model.Track, error)
}

// FallbackProvider can hand out a playable URL without resolving a stream.
type FallbackProvider interface {
	FallbackURL(id string) string
}

// Registry holds providers keyed by source, remembering registration order.
type Registry struct {
	mu        sync.RWMutex
	order     []model.Source
	providers map[model.Source]SourceProvider
}

func NewRegistry(providers ...SourceProvider) *Registry {
	r := &Registry{providers: make(map[model.Source]SourceProvider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p. Registering a source again replaces the provider but keeps
// its original position.
func (r *Registry) Register(p SourceProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[p.Name()]; !ok {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

// Get returns the provider for source.
func (r *Registry) Get(source model.Source) (SourceProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[source]
	return p, ok
}

// All returns every provider in registration order.
func (r *Registry) All() []SourceProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SourceProvider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Filter returns the providers selected by filter: "all" (or empty) selects
// every provider, anything else selects the provider with that name.
func (r *Registry) Filter(filter string) []SourceProvider {
	if filter == "" || filter == "all" {
		return r.All()
	}
	if p, ok := r.Get(model.Source(filter)); ok {
		return []SourceProvider{p}
	}
	return nil
}

// Names lists registered sources in order.
func (r *Registry) Names() []model.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Source(nil), r.order...)
}
