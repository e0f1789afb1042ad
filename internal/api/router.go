// Package api wires the greenyield HTTP API.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/greenyield/greenyield/internal/api/handler"
	"github.com/greenyield/greenyield/internal/api/middleware"
	"github.com/greenyield/greenyield/internal/crop"
	"github.com/greenyield/greenyield/internal/forecast"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Tokens          middleware.TokenValidator
	CropTable       *crop.Table
	ForecastService *forecast.Service

	// Providers reports external provider health on /v1/ops/status. Optional.
	Providers handler.ProviderHealthSource
}

// NewRouter creates a chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "greenyield-api"
	}

	// Order matters: ids and spans first so every later layer can log them.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Storage:   cfg.ForecastService,
		Providers: cfg.Providers,
	})
	cropHandler := handler.NewCropHandler(cfg.CropTable)
	forecastHandler := handler.NewForecastHandler(cfg.ForecastService, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.Tokens)
	previewRateLimit := middleware.RateLimitByIP(middleware.PreviewRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/crops", func(r chi.Router) {
			r.Use(previewRateLimit)
			r.Get("/", cropHandler.ListCrops)
			r.Get("/{cropId}", cropHandler.GetCrop)
		})

		r.With(previewRateLimit).Post("/forecasts:preview", forecastHandler.Preview)
		r.With(middleware.RateLimitByIP(middleware.WeatherRateLimit)).Post("/forecasts:fromWeather", forecastHandler.FromWeather)

		r.Route("/forecasts", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByGrower(middleware.StandardRateLimit))
			r.Get("/", forecastHandler.ListForecasts)
			r.Post("/", forecastHandler.CreateForecast)
			r.Route("/{forecastId}", func(r chi.Router) {
				r.Get("/", forecastHandler.GetForecast)
				r.Delete("/", forecastHandler.DeleteForecast)
			})
		})
	})

	return r
}
