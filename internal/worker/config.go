// Package worker runs greenyield background jobs: batch forecasts and
// weather cache refreshes, delivered over Pub/Sub.
package worker

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds worker tuning.
type Config struct {
	// Concurrency bounds the items processed at once within one job.
	Concurrency int

	// ItemTimeout bounds each batch item and each refreshed location.
	ItemTimeout time.Duration

	// MaxBatchItems rejects larger batches outright.
	MaxBatchItems int

	// RefreshPoints are the greenhouse locations whose weather is kept warm.
	RefreshPoints []Point
}

// Point is a greenhouse location.
type Point struct {
	Lat float64
	Lon float64
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:   4,
		ItemTimeout:   10 * time.Second,
		MaxBatchItems: 500,
	}
}

// ConfigFromEnv reads WORKER_CONCURRENCY, WORKER_ITEM_TIMEOUT,
// WORKER_MAX_BATCH_ITEMS and WEATHER_REFRESH_POINTS on top of the defaults.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("WORKER_CONCURRENCY: must be a positive integer, got %q", v)
		}
		cfg.Concurrency = n
	}
	if v := os.Getenv("WORKER_ITEM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("WORKER_ITEM_TIMEOUT: must be a positive duration, got %q", v)
		}
		cfg.ItemTimeout = d
	}
	if v := os.Getenv("WORKER_MAX_BATCH_ITEMS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("WORKER_MAX_BATCH_ITEMS: must be a positive integer, got %q", v)
		}
		cfg.MaxBatchItems = n
	}

	points, err := ParsePoints(os.Getenv("WEATHER_REFRESH_POINTS"))
	if err != nil {
		return Config{}, fmt.Errorf("WEATHER_REFRESH_POINTS: %w", err)
	}
	cfg.RefreshPoints = points

	return cfg, nil
}

// ParsePoints parses "lat,lon;lat,lon". An empty string yields no points.
func ParsePoints(s string) ([]Point, error) {
	var points []Point
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		latStr, lonStr, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q: want lat,lon", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid latitude in %q", pair)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid longitude in %q", pair)
		}
		points = append(points, Point{Lat: lat, Lon: lon})
	}
	return points, nil
}
