package forecast

import (
	"errors"
	"time"
)

// Service and repository errors.
var (
	ErrForecastNotFound   = errors.New("forecast not found")
	ErrWeatherUnavailable = errors.New("weather conditions unavailable")
	// ErrInvalidCursor is returned by List when the cursor does not name one
	// of the grower's forecasts, for example after it was deleted.
	ErrInvalidCursor = errors.New("invalid list cursor")
)

// Forecast is a stored prediction owned by a grower.
type Forecast struct {
	ID        string
	GrowerID  string
	Input     Input
	Result    Result
	CreatedAt time.Time
}
