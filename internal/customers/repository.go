package customers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for customer storage
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
	GetByPhone(ctx context.Context, phone string) (*Customer, error)
	Upsert(ctx context.Context, req *UpsertRequest) (*Customer, error)
	UpdateName(ctx context.Context, id, firstName, lastName string) (*Customer, error)
}

// InMemoryRepository is a stub implementation of Repository using in-memory storage
type InMemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*Customer
	byPhone map[string]*Customer
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:    make(map[string]*Customer),
		byPhone: make(map[string]*Customer),
	}
}

// GetByID retrieves a customer by id
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	clone := *c
	return &clone, nil
}

// GetByPhone retrieves a customer by E.164 phone
func (r *InMemoryRepository) GetByPhone(ctx context.Context, phone string) (*Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byPhone[phone]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	clone := *c
	return &clone, nil
}

// Upsert creates the customer for a phone or refreshes its name fields.
func (r *InMemoryRepository) Upsert(ctx context.Context, req *UpsertRequest) (*Customer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byPhone[req.Phone]; ok {
		if strings.TrimSpace(req.FirstName) != "" {
			existing.FirstName = req.FirstName
		}
		if strings.TrimSpace(req.LastName) != "" {
			existing.LastName = req.LastName
		}
		clone := *existing
		return &clone, nil
	}

	c := &Customer{
		ID:        uuid.New().String(),
		Phone:     req.Phone,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		CreatedAt: time.Now().UTC(),
	}
	r.byID[c.ID] = c
	r.byPhone[c.Phone] = c
	clone := *c
	return &clone, nil
}

// UpdateName overwrites the name fields for an existing customer.
func (r *InMemoryRepository) UpdateName(ctx context.Context, id, firstName, lastName string) (*Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	c.FirstName = firstName
	c.LastName = lastName
	clone := *c
	return &clone, nil
}
