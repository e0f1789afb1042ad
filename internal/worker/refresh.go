package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/greenyield/greenyield/internal/weather"
)

// WeatherFetcher fetches current weather, filling its cache as a side effect.
type WeatherFetcher interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Observation, error)
}

// RefreshJob keeps the weather cache warm for known greenhouse locations so
// weather-derived forecasts rarely wait on the provider.
type RefreshJob struct {
	weather WeatherFetcher
	config  Config
	logger  zerolog.Logger

	mu    sync.RWMutex
	stats RefreshStats
}

// RefreshStats accumulates refresh outcomes across runs.
type RefreshStats struct {
	Runs                int64
	Refreshed           int64
	Failed              int64
	LastRunAt           time.Time
	LastRunDuration     time.Duration
	LastFailedLocations int
}

// RefreshResult is the outcome of one refresh run.
type RefreshResult struct {
	Total     int
	Refreshed int
	Failed    int
	Errors    []RefreshError
	Duration  time.Duration
}

// RefreshError records a location that could not be refreshed.
type RefreshError struct {
	Point Point
	Err   error
}

// NewRefreshJob creates a refresh job for cfg.RefreshPoints.
func NewRefreshJob(fetcher WeatherFetcher, cfg Config, logger zerolog.Logger) *RefreshJob {
	def := DefaultConfig()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = def.ItemTimeout
	}
	return &RefreshJob{weather: fetcher, config: cfg, logger: logger}
}

// Run fetches weather for every configured point.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	start := time.Now()
	points := j.config.RefreshPoints
	result := &RefreshResult{Total: len(points)}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(j.config.Concurrency)

	for _, p := range points {
		if ctx.Err() != nil {
			mu.Lock()
			result.Errors = append(result.Errors, RefreshError{Point: p, Err: ctx.Err()})
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			pointCtx, cancel := context.WithTimeout(ctx, j.config.ItemTimeout)
			defer cancel()

			_, err := j.weather.GetCurrentWeather(pointCtx, p.Lat, p.Lon)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, RefreshError{Point: p, Err: err})
				return nil
			}
			result.Refreshed++
			return nil
		})
	}
	_ = g.Wait()

	result.Failed = len(result.Errors)
	result.Duration = time.Since(start)
	j.record(result, start)

	event := j.logger.Info()
	if result.Failed > 0 {
		event = j.logger.Warn()
	}
	event.
		Int("total", result.Total).
		Int("refreshed", result.Refreshed).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("weather refresh completed")

	return result
}

func (j *RefreshJob) record(result *RefreshResult, start time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.stats.Runs++
	j.stats.Refreshed += int64(result.Refreshed)
	j.stats.Failed += int64(result.Failed)
	j.stats.LastRunAt = start
	j.stats.LastRunDuration = result.Duration
	j.stats.LastFailedLocations = result.Failed
}

// Stats returns a copy of the accumulated statistics.
func (j *RefreshJob) Stats() RefreshStats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stats
}

// StatsSnapshot returns the statistics as a JSON-friendly map.
func (j *RefreshJob) StatsSnapshot() map[string]interface{} {
	s := j.Stats()
	return map[string]interface{}{
		"runs":                  s.Runs,
		"refreshed":             s.Refreshed,
		"failed":                s.Failed,
		"last_run_at":           s.LastRunAt,
		"last_run_duration":     s.LastRunDuration.String(),
		"last_failed_locations": s.LastFailedLocations,
		"locations":             len(j.config.RefreshPoints),
	}
}
