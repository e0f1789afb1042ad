package forecast

import "context"

// DefaultListLimit is used when no list limit is given.
const DefaultListLimit = 50

// ListOptions contains options for listing forecasts.
type ListOptions struct {
	Limit int
	// Cursor is the ID of the last forecast of the previous page.
	Cursor string
}

// ListResult contains the results of listing forecasts.
type ListResult struct {
	Items      []*Forecast
	NextCursor string
}

// Repository defines the interface for forecast persistence.
type Repository interface {
	// GetByGrowerAndID retrieves a forecast owned by a grower.
	// Returns ErrForecastNotFound if it doesn't exist or belongs to someone else.
	GetByGrowerAndID(ctx context.Context, growerID, forecastID string) (*Forecast, error)

	// List retrieves a grower's forecasts, newest first.
	List(ctx context.Context, growerID string, opts ListOptions) (*ListResult, error)

	// Create stores a new forecast.
	Create(ctx context.Context, f *Forecast) error

	// Delete removes a forecast owned by a grower.
	Delete(ctx context.Context, growerID, forecastID string) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
