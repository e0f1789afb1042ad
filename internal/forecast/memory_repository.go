package forecast

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// It backs tests and the STORAGE_BACKEND=memory mode.
type InMemoryRepository struct {
	mu        sync.RWMutex
	forecasts map[string]*Forecast
}

// NewInMemoryRepository creates a new in-memory forecast repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		forecasts: make(map[string]*Forecast),
	}
}

// GetByGrowerAndID retrieves a forecast by grower ID and forecast ID.
func (r *InMemoryRepository) GetByGrowerAndID(_ context.Context, growerID, forecastID string) (*Forecast, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.forecasts[forecastID]
	if !ok || f.GrowerID != growerID {
		return nil, ErrForecastNotFound
	}

	return clone(f), nil
}

// List retrieves a grower's forecasts, newest first.
func (r *InMemoryRepository) List(_ context.Context, growerID string, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Forecast
	for _, f := range r.forecasts {
		if f.GrowerID == growerID {
			items = append(items, clone(f))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if opts.Cursor != "" {
		idx := slices.IndexFunc(items, func(f *Forecast) bool { return f.ID == opts.Cursor })
		if idx < 0 {
			return nil, ErrInvalidCursor
		}
		items = items[idx+1:]
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	result := &ListResult{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.NextCursor = items[limit-1].ID
	}

	return result, nil
}

// Create stores a new forecast.
func (r *InMemoryRepository) Create(_ context.Context, f *Forecast) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.forecasts[f.ID] = clone(f)
	return nil
}

// Delete removes a forecast owned by a grower.
func (r *InMemoryRepository) Delete(_ context.Context, growerID, forecastID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.forecasts[forecastID]
	if !ok || f.GrowerID != growerID {
		return ErrForecastNotFound
	}
	delete(r.forecasts, forecastID)
	return nil
}

// Ping always succeeds.
func (r *InMemoryRepository) Ping(context.Context) error {
	return nil
}

// clone copies a forecast including its slices.
func clone(f *Forecast) *Forecast {
	cpy := *f
	cpy.Result.MonthlySeries = slices.Clone(f.Result.MonthlySeries)
	cpy.Result.Recommendations = slices.Clone(f.Result.Recommendations)
	return &cpy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
