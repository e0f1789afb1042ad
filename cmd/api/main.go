// Package main provides the entrypoint for the greenyield API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greenyield/greenyield/internal/api"
	"github.com/greenyield/greenyield/internal/api/middleware"
	"github.com/greenyield/greenyield/internal/auth"
	"github.com/greenyield/greenyield/internal/bootstrap"
	"github.com/greenyield/greenyield/internal/forecast"
	"github.com/greenyield/greenyield/internal/provider/resilience"
	"github.com/greenyield/greenyield/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const devSigningKey = "local-dev-signing-key-change-in-production"

func main() {
	const serviceName = "greenyield-api"

	log := bootstrap.Logger(serviceName, Version)
	log.Info().Str("build_time", BuildTime).Msg("starting greenyield API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	ctx := context.Background()

	telemetryConfig := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, telemetryConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if telemetryConfig.Enabled {
		log.Info().Str("otlp_endpoint", telemetryConfig.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics(tp.Meters())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	forecastMetrics, err := forecast.NewMetrics(tp.Meters())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize forecast metrics")
	}

	table, err := bootstrap.CropTable(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load crop table")
	}

	repo, releaseRepo, err := bootstrap.Repository(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open forecast storage")
	}
	defer releaseRepo()

	registry := resilience.NewRegistry()
	serviceConfig := forecast.ServiceConfig{
		Engine:     forecast.NewEngine(table),
		Repository: repo,
		Logger:     log,
		Metrics:    forecastMetrics,
	}
	// Assigned only when present: a nil *weather.Service in the interface
	// would not compare equal to nil.
	if weatherService := bootstrap.Weather(log, registry); weatherService != nil {
		serviceConfig.Weather = weatherService
	}
	forecastService := forecast.NewService(serviceConfig)

	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		if env == "production" {
			log.Fatal().Msg("JWT_SIGNING_KEY is required in production")
		}
		signingKey = devSigningKey
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		SigningKey: signingKey,
		Issuer:     os.Getenv("JWT_ISSUER"),
		Audience:   os.Getenv("JWT_AUDIENCE"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize JWT service")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         httpMetrics,
		RequireTLS:      os.Getenv("REQUIRE_TLS") == "true",
		Tokens:          jwtService,
		CropTable:       table,
		ForecastService: forecastService,
		Providers:       registry,
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
