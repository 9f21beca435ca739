// Package source defines news-source adapters and the registry that holds them.
package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"fxwatch/internal/domain"
)

// Adapter fetches the most recent relevant item of one news source.
// Failures are returned as *domain.FetchError or *domain.NoMatchError.
type Adapter interface {
	FetchLatest(ctx context.Context) (domain.LatestItem, error)
}

// AdapterFunc lets an ordinary function serve as an Adapter.
type AdapterFunc func(ctx context.Context) (domain.LatestItem, error)

func (f AdapterFunc) FetchLatest(ctx context.Context) (domain.LatestItem, error) {
	return f(ctx)
}

// Source is a registered news origin.
type Source struct {
	ID   string
	Name string
	Kind domain.SourceKind

	// FullPage asks the pipeline to extract the whole article instead of
	// relying on the adapter's snippet.
	FullPage bool

	Adapter Adapter
}

// Info returns the public description of the source.
func (s Source) Info() domain.SourceInfo {
	return domain.SourceInfo{ID: s.ID, Name: s.Name, Kind: s.Kind}
}

// Registry holds sources by id and remembers registration order.
// It is filled once at startup and only read afterwards.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]Source
	ordered []string
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Source)}
}

// Register adds src. Empty and duplicate ids are rejected.
func (r *Registry) Register(src Source) error {
	id := strings.TrimSpace(src.ID)
	if id == "" {
		return fmt.Errorf("%w: empty id", domain.ErrInvalidSource)
	}
	if src.Adapter == nil {
		return fmt.Errorf("%w: %s has no adapter", domain.ErrInvalidSource, id)
	}
	if src.Name == "" {
		src.Name = id
	}
	if src.Kind == "" {
		src.Kind = domain.KindGeneralNews
	}
	src.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byID[id]; taken {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateSource, id)
	}
	r.byID[id] = src
	r.ordered = append(r.ordered, id)
	return nil
}

// Get returns the source registered under id.
func (r *Registry) Get(id string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.byID[id]
	if !ok {
		return Source{}, &domain.SourceNotFoundError{ID: id, Valid: append([]string(nil), r.ordered...)}
	}
	return src, nil
}

// List describes every source in registration order.
func (r *Registry) List() []domain.SourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]domain.SourceInfo, 0, len(r.ordered))
	for _, id := range r.ordered {
		infos = append(infos, r.byID[id].Info())
	}
	return infos
}

// Sources returns the registered sources in registration order.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.ordered))
	for _, id := range r.ordered {
		out = append(out, r.byID[id])
	}
	return out
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}
