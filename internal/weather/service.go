package weather

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Provider fetches current outdoor conditions.
type Provider interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error)
	Name() string
}

// ServiceConfig configures a Service. Zero values take the defaults.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// CacheTTL is how long an observation is served without refetching.
	// Default 10 minutes.
	CacheTTL time.Duration

	// CellSize is the edge of a cache cell in degrees. Greenhouses in the
	// same cell share one observation. Default 0.1 (about 11 km).
	CellSize float64

	// StaleFor bounds how old an observation may be when it is served
	// because the provider failed. Default 1 hour.
	StaleFor time.Duration

	// FetchTimeout bounds a provider call shared by concurrent callers.
	// Default 10 seconds.
	FetchTimeout time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service serves current weather per cache cell. Concurrent misses on one
// cell share a single provider call. When the provider fails, the last
// observation of the cell is returned marked Stale until StaleFor elapses.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	ttl      time.Duration
	cellSize float64
	staleFor time.Duration
	timeout  time.Duration
	now      func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	cells     map[cell]cacheEntry
	lastPrune time.Time
}

// cell identifies a grid square by its integer coordinates.
type cell struct {
	lat, lon int64
}

func (c cell) String() string {
	return strconv.FormatInt(c.lat, 10) + ":" + strconv.FormatInt(c.lon, 10)
}

type cacheEntry struct {
	obs       *Observation
	fetchedAt time.Time
}

const pruneInterval = 5 * time.Minute

// NewService creates a weather service over cfg.Provider.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		ttl:      cfg.CacheTTL,
		cellSize: cfg.CellSize,
		staleFor: cfg.StaleFor,
		timeout:  cfg.FetchTimeout,
		now:      cfg.Now,
		cells:    make(map[cell]cacheEntry),
	}
	if s.ttl <= 0 {
		s.ttl = 10 * time.Minute
	}
	if s.cellSize <= 0 {
		s.cellSize = 0.1
	}
	if s.staleFor <= 0 {
		s.staleFor = time.Hour
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Name returns the provider name.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetCurrentWeather returns the observation for the cell containing lat/lon.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	c := s.cellOf(lat, lon)
	if entry, ok := s.lookup(c); ok && s.now().Sub(entry.fetchedAt) < s.ttl {
		return entry.obs, nil
	}

	// The shared fetch is detached from each caller's cancellation.
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(c.String(), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(detached, s.timeout)
		defer cancel()
		return s.refresh(fetchCtx, c, lat, lon)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Observation), nil
	}
}

func (s *Service) refresh(ctx context.Context, c cell, lat, lon float64) (*Observation, error) {
	// Another caller may have filled the cell while this one waited.
	if entry, ok := s.lookup(c); ok && s.now().Sub(entry.fetchedAt) < s.ttl {
		return entry.obs, nil
	}

	obs, err := s.provider.GetCurrentWeather(ctx, lat, lon)
	if err != nil {
		log := s.logger.With().Err(err).Str("cell", c.String()).Logger()

		if entry, ok := s.lookup(c); ok && s.now().Sub(entry.fetchedAt) < s.staleFor {
			log.Warn().Time("fetched_at", entry.fetchedAt).Msg("provider failed, serving stale weather")
			stale := *entry.obs
			stale.Stale = true
			return &stale, nil
		}

		log.Error().Msg("failed to fetch weather")
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	now := s.now()
	s.mu.Lock()
	s.cells[c] = cacheEntry{obs: obs, fetchedAt: now}
	if now.Sub(s.lastPrune) >= pruneInterval {
		s.pruneLocked(now)
	}
	s.mu.Unlock()

	return obs, nil
}

func (s *Service) lookup(c cell) (cacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cells[c]
	return entry, ok
}

// pruneLocked drops entries too old to be served even as stale.
func (s *Service) pruneLocked(now time.Time) {
	s.lastPrune = now
	removed := 0
	for c, entry := range s.cells {
		if now.Sub(entry.fetchedAt) >= s.staleFor {
			delete(s.cells, c)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("pruned weather cache")
	}
}

func (s *Service) cellOf(lat, lon float64) cell {
	return cell{
		lat: int64(math.Floor(lat / s.cellSize)),
		lon: int64(math.Floor(lon / s.cellSize)),
	}
}

// Flush empties the cache.
func (s *Service) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells = make(map[cell]cacheEntry)
}

// CacheStats describes the cache contents.
type CacheStats struct {
	Provider string
	Cells    int
	Fresh    int
}

// Stats reports how many cells are cached and how many are still fresh.
func (s *Service) Stats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	stats := CacheStats{Provider: s.provider.Name(), Cells: len(s.cells)}
	for _, entry := range s.cells {
		if now.Sub(entry.fetchedAt) < s.ttl {
			stats.Fresh++
		}
	}
	return stats
}

func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
