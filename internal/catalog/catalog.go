package catalog

import (
	"context"
	"fmt"
)

// RawEntry is one product tile as scraped from a catalog page, before
// normalization. Fields are carried verbatim; cleanup happens downstream.
type RawEntry struct {
	Title         string
	ProductURL    string
	ImageURL      string
	AltImageURL   string
	License       string
	Badge         string
	Availability  string
	Price         float64
	OriginalPrice float64
	Page          string
}

// Request carries the parameters for fetching a single catalog page.
type Request struct {
	Page   string
	Region string
}

// Source captures a single catalog scraping strategy (funko.com, a dataset
// mirror, etc.).
type Source interface {
	Name() string
	FetchPage(ctx context.Context, req Request) ([]RawEntry, error)
}

// Registry keeps a mapping from source names to their implementations.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(source Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	r.sources[source.Name()] = source
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Source, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("catalog source %s is not registered", name)
}
