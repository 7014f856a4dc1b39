package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry dispatches to providers by the tag carried in a Reference.
type Registry struct {
	mu        sync.RWMutex
	providers map[Tag]Provider
}

// NewRegistry creates a registry holding the given providers, keyed by Name().
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Tag]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[Tag(p.Name())] = p
}

// Get returns the provider registered under tag.
func (r *Registry) Get(tag Tag) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, tag)
	}
	return p, nil
}

// Tags lists registered provider tags in sorted order.
func (r *Registry) Tags() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]Tag, 0, len(r.providers))
	for t := range r.providers {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Search runs a query against the provider named by tag.
func (r *Registry) Search(ctx context.Context, tag Tag, query string, page int) ([]Track, error) {
	p, err := r.Get(tag)
	if err != nil {
		return nil, err
	}
	return p.Search(ctx, query, page)
}

// Resolve fetches the audio stream for ref from its provider.
func (r *Registry) Resolve(ctx context.Context, ref Reference, notify Notify) (*Stream, error) {
	p, err := r.Get(ref.Provider)
	if err != nil {
		return nil, err
	}
	if notify == nil {
		notify = func(string) {}
	}
	return p.Resolve(ctx, ref, notify)
}
