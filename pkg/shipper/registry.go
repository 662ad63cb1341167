package shipper

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry manages registered courier accounts.
type Registry struct {
	shippers map[string]Shipper
	mu       sync.RWMutex
}

// NewRegistry creates a new shipper registry.
func NewRegistry() *Registry {
	return &Registry{
		shippers: make(map[string]Shipper),
	}
}

// Register adds a shipper to the registry.
func (r *Registry) Register(s Shipper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shippers[s.Name()] = s
}

// Get returns a shipper by name.
func (r *Registry) Get(name string) (Shipper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.shippers[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCarrierNotFound, name)
}

// Default returns the only registered shipper, or the first by name when
// several are registered.
func (r *Registry) Default() (Shipper, error) {
	names := r.Names()
	if len(names) == 0 {
		return nil, ErrCarrierNotFound
	}
	return r.Get(names[0])
}

// All returns all registered shippers.
func (r *Registry) All() []Shipper {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Shipper, 0, len(r.shippers))
	for _, s := range r.shippers {
		result = append(result, s)
	}
	return result
}

// Names returns the sorted names of all registered shippers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.shippers))
	for name := range r.shippers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered shippers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shippers)
}

// ServicesFromAll runs the availability check against every registered
// account in parallel. A failing account does not fail the others.
func (r *Registry) ServicesFromAll(ctx context.Context, q *ServiceQuery) ([]*Services, []error) {
	shippers := r.All()
	if len(shippers) == 0 {
		return nil, []error{ErrCarrierNotFound}
	}
	return collectServices(ctx, q, shippers, nil)
}

// ServicesFrom runs the availability check against the named accounts.
// An empty list means every account.
func (r *Registry) ServicesFrom(ctx context.Context, q *ServiceQuery, names []string) ([]*Services, []error) {
	if len(names) == 0 {
		return r.ServicesFromAll(ctx, q)
	}

	shippers := make([]Shipper, 0, len(names))
	var errs []error
	for _, name := range names {
		s, err := r.Get(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		shippers = append(shippers, s)
	}
	return collectServices(ctx, q, shippers, errs)
}

func collectServices(ctx context.Context, q *ServiceQuery, shippers []Shipper, errs []error) ([]*Services, []error) {
	results := make([]*Services, 0, len(shippers))
	mu := &sync.Mutex{}

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range shippers {
		g.Go(func() error {
			services, err := s.Services(ctx, q)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				return nil
			}
			results = append(results, services)
			return nil
		})
	}

	_ = g.Wait()
	return results, errs
}
