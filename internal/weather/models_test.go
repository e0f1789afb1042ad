package weather_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/greenyield/greenyield/internal/weather"
)

func TestObservation_DaylightHours(t *testing.T) {
	sunrise := time.Date(2026, 6, 21, 3, 18, 0, 0, time.UTC)

	tests := []struct {
		name     string
		obs      weather.Observation
		expected float64
	}{
		{"summer day", weather.Observation{Sunrise: sunrise, Sunset: sunrise.Add(16*time.Hour + 30*time.Minute)}, 16.5},
		{"unknown sunrise", weather.Observation{Sunset: sunrise}, 0},
		{"unknown sunset", weather.Observation{Sunrise: sunrise}, 0},
		{"inverted window", weather.Observation{Sunrise: sunrise, Sunset: sunrise.Add(-time.Hour)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.obs.DaylightHours(), 1e-9)
		})
	}
}
