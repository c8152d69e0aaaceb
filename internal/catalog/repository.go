package catalog

import (
	"context"
	"strings"
	"sync"
)

// Repository defines the interface for catalog storage
type Repository interface {
	ListActiveServices(ctx context.Context) ([]Service, error)
	GetService(ctx context.Context, id string) (*Service, error)
	ListActiveStylists(ctx context.Context, category string) ([]Stylist, error)
	GetStylist(ctx context.Context, id string) (*Stylist, error)
}

// InMemoryRepository is a stub implementation backed by slices, used in
// tests and by the resolver tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	services []Service
	stylists []Stylist
}

// NewInMemoryRepository creates an in-memory catalog.
func NewInMemoryRepository(services []Service, stylists []Stylist) *InMemoryRepository {
	return &InMemoryRepository{services: services, stylists: stylists}
}

// ListActiveServices returns active services in catalog order.
func (r *InMemoryRepository) ListActiveServices(ctx context.Context) ([]Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Service, 0, len(r.services))
	for _, s := range r.services {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

// GetService returns one service by id.
func (r *InMemoryRepository) GetService(ctx context.Context, id string) (*Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.services {
		if s.ID == id {
			clone := s
			return &clone, nil
		}
	}
	return nil, ErrServiceNotFound
}

// ListActiveStylists returns active stylists covering a category; an
// empty category returns all active stylists.
func (r *InMemoryRepository) ListActiveStylists(ctx context.Context, category string) ([]Stylist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Stylist, 0, len(r.stylists))
	for _, st := range r.stylists {
		if !st.Active {
			continue
		}
		if strings.TrimSpace(category) != "" && !st.WorksIn(category) {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// GetStylist returns one stylist by id.
func (r *InMemoryRepository) GetStylist(ctx context.Context, id string) (*Stylist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, st := range r.stylists {
		if st.ID == id {
			clone := st
			return &clone, nil
		}
	}
	return nil, ErrStylistNotFound
}
