package weather

import (
	"errors"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrNoDataForLocation   = errors.New("no weather data for location")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Observation represents outdoor conditions at a greenhouse location.
type Observation struct {
	Lat float64
	Lon float64

	// Temperature in Celsius
	Temperature float64

	// Humidity percentage (0-100)
	Humidity float64

	// CloudCover percentage (0-100)
	CloudCover float64

	Condition   Condition
	Description string

	// Sunrise and Sunset bound the daylight window, zero if unknown.
	Sunrise time.Time
	Sunset  time.Time

	ObservedAt time.Time
	FetchedAt  time.Time

	// Stale is set when the observation was served from cache after a provider error.
	Stale bool
}

// Condition represents the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionUnknown      Condition = "UNKNOWN"
)

// DaylightHours returns the length of the daylight window in hours,
// or 0 when sunrise or sunset is unknown.
func (o *Observation) DaylightHours() float64 {
	if o.Sunrise.IsZero() || o.Sunset.IsZero() || !o.Sunset.After(o.Sunrise) {
		return 0
	}
	return o.Sunset.Sub(o.Sunrise).Hours()
}
