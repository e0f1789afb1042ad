// Package main provides the entrypoint for the greenyield background worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greenyield/greenyield/internal/bootstrap"
	"github.com/greenyield/greenyield/internal/forecast"
	"github.com/greenyield/greenyield/internal/provider/resilience"
	"github.com/greenyield/greenyield/internal/telemetry"
	"github.com/greenyield/greenyield/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "greenyield-worker"

	log := bootstrap.Logger(serviceName, Version)
	log.Info().Str("build_time", BuildTime).Msg("starting greenyield worker")

	// The worker exposes a health endpoint for the container platform.
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	cfg, err := worker.ConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid worker configuration")
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

	forecastMetrics, err := forecast.NewMetrics(tp.Meters())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize forecast metrics")
	}
	forecastService := forecast.NewService(forecast.ServiceConfig{
		Engine:     forecast.NewEngine(table),
		Repository: repo,
		Logger:     log,
		Metrics:    forecastMetrics,
	})

	var refreshJob *worker.RefreshJob
	if weatherService := bootstrap.Weather(log, resilience.NewRegistry()); weatherService != nil && len(cfg.RefreshPoints) > 0 {
		refreshJob = worker.NewRefreshJob(weatherService, cfg, log)
	}

	dispatcher := worker.NewDispatcher(worker.NewBatchJob(forecastService, cfg, log), refreshJob, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]interface{}{"status": "healthy", "version": Version}
		if refreshJob != nil {
			body["weather_refresh"] = refreshJob.StatsSnapshot()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
		if subscription == "" {
			subscription = "greenyield-worker"
		}

		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Dispatcher:       dispatcher,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() { _ = handler.Close() }()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set, not consuming batch jobs")
	}

	if refreshJob != nil {
		interval, err := time.ParseDuration(os.Getenv("WEATHER_REFRESH_INTERVAL"))
		if err != nil || interval <= 0 {
			interval = 10 * time.Minute
		}
		go runRefreshLoop(ctx, refreshJob, interval)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runRefreshLoop refreshes immediately and then on every tick until ctx ends.
func runRefreshLoop(ctx context.Context, job *worker.RefreshJob, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job.Run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
