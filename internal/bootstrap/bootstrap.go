// Package bootstrap builds the dependencies shared by the greenyield
// binaries from environment variables.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenyield/greenyield/internal/crop"
	"github.com/greenyield/greenyield/internal/database"
	"github.com/greenyield/greenyield/internal/forecast"
	"github.com/greenyield/greenyield/internal/provider/resilience"
	"github.com/greenyield/greenyield/internal/weather"
	"github.com/greenyield/greenyield/internal/weather/openweathermap"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Logger returns the JSON logger every binary writes to stdout.
// LOG_LEVEL selects the level; unknown values keep info.
func Logger(service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// CropTable loads CROP_TABLE_PATH, or the built-in table when unset.
func CropTable(log zerolog.Logger) (*crop.Table, error) {
	path := os.Getenv("CROP_TABLE_PATH")
	table, err := crop.Load(path)
	if err != nil {
		return nil, err
	}

	source := path
	if source == "" {
		source = "builtin"
	}
	log.Info().Str("source", source).Int("profiles", table.Len()).Msg("crop table loaded")
	return table, nil
}

// Repository opens the forecast store named by STORAGE_BACKEND (default
// postgres). The returned func releases it.
func Repository(ctx context.Context, log zerolog.Logger) (forecast.Repository, func(), error) {
	backend := os.Getenv("STORAGE_BACKEND")
	if backend == "" {
		backend = StoragePostgres
	}

	switch backend {
	case StorageMemory:
		log.Warn().Msg("using in-memory forecast storage, data is lost on restart")
		return forecast.NewInMemoryRepository(), func() {}, nil
	case StoragePostgres:
		pool, err := database.Connect(ctx, database.ConfigFromEnv(), log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return forecast.NewPostgresRepository(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_BACKEND %q", backend)
	}
}

// Weather returns a cached OpenWeatherMap source registered with registry,
// or nil when OPENWEATHERMAP_API_KEY is unset.
func Weather(log zerolog.Logger, registry *resilience.Registry) *weather.Service {
	apiKey := os.Getenv("OPENWEATHERMAP_API_KEY")
	if apiKey == "" {
		log.Warn().Msg("OPENWEATHERMAP_API_KEY not set, weather-derived forecasts disabled")
		return nil
	}

	providerLog := log.With().Str("provider", openweathermap.ProviderName).Logger()
	httpConfig := resilience.DefaultClientConfig(openweathermap.ProviderName)
	httpConfig.CircuitBreaker.Logger = &providerLog
	httpConfig.Registry = registry

	client := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     apiKey,
		BaseURL:    os.Getenv("OPENWEATHERMAP_BASE_URL"),
		HTTPClient: resilience.NewClient(httpConfig),
		Logger:     providerLog,
	})

	return weather.NewService(weather.ServiceConfig{
		Provider: client,
		Logger:   log,
		CacheTTL: 10 * time.Minute,
	})
}
