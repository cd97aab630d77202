package responders

import (
	"context"
	"sync"
)

// Repository defines the interface for responder storage. Assign and Release
// must enforce the caseload cap atomically: concurrent assignments may never
// push CurrentCases past MaxCases.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Professional, error)
	ListActive(ctx context.Context) ([]*Professional, error)
	Upsert(ctx context.Context, p *Professional) error
	Assign(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
	UpdateAvailability(ctx context.Context, id string, availability Availability) error
}

// InMemoryRepository stores responders in memory. Useful for tests and
// single-node deployments.
type InMemoryRepository struct {
	mu    sync.RWMutex
	pros  map[string]*Professional
	order []string
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{pros: make(map[string]*Professional)}
}

// GetByID retrieves a responder by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Professional, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pros[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListActive returns all responders with active status, in insertion order.
func (r *InMemoryRepository) ListActive(ctx context.Context) ([]*Professional, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Professional, 0, len(r.pros))
	for _, id := range r.order {
		p := r.pros[id]
		if p.Status != StatusActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// Upsert inserts or replaces a responder record.
func (r *InMemoryRepository) Upsert(ctx context.Context, p *Professional) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pros[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	cp := *p
	r.pros[p.ID] = &cp
	return nil
}

// Assign increments the responder's caseload, failing rather than exceeding
// MaxCases.
func (r *InMemoryRepository) Assign(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pros[id]
	if !ok {
		return ErrNotFound
	}
	if p.CurrentCases >= p.MaxCases {
		return ErrAtCapacity
	}
	p.CurrentCases++
	return nil
}

// Release decrements the responder's caseload at session end.
func (r *InMemoryRepository) Release(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pros[id]
	if !ok {
		return ErrNotFound
	}
	if p.CurrentCases > 0 {
		p.CurrentCases--
	}
	return nil
}

// UpdateAvailability sets the responder's self-reported availability.
func (r *InMemoryRepository) UpdateAvailability(ctx context.Context, id string, availability Availability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pros[id]
	if !ok {
		return ErrNotFound
	}
	p.Availability = availability
	return nil
}
