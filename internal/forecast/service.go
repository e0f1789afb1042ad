package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenyield/greenyield/internal/api/models"
	"github.com/greenyield/greenyield/internal/weather"
)

// MaxListLimit caps the page size of List.
const MaxListLimit = 100

// WeatherSource supplies current outdoor conditions.
type WeatherSource interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Observation, error)
	Name() string
}

// ServiceConfig holds the dependencies of the forecast service.
type ServiceConfig struct {
	Engine     *Engine
	Repository Repository

	// Weather is optional; without it FromWeather returns ErrWeatherUnavailable.
	Weather WeatherSource

	Logger  zerolog.Logger
	Metrics *Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service provides forecast operations.
type Service struct {
	engine  *Engine
	repo    Repository
	weather WeatherSource
	logger  zerolog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService creates a new forecast service.
func NewService(cfg ServiceConfig) *Service {
	engine := cfg.Engine
	if engine == nil {
		engine = NewEngine(nil)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		engine:  engine,
		repo:    cfg.Repository,
		weather: cfg.Weather,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  otel.Tracer(instrumentationName),
		now:     now,
	}
}

// Engine returns the prediction engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// WeatherEnabled reports whether weather-derived forecasts are available.
func (s *Service) WeatherEnabled() bool {
	return s.weather != nil
}

// Ping checks the forecast store.
func (s *Service) Ping(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Ping(ctx)
}

// Preview validates a request and computes a forecast without storing it.
func (s *Service) Preview(ctx context.Context, req *models.ForecastRequest) (*models.ForecastPreview, error) {
	in, fieldErrors := Validate(req)
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	res := s.predict(ctx, in, false)

	preview := ToAPIPreview(in, res)
	return &preview, nil
}

// Create validates a request, computes a forecast and stores it for the grower.
func (s *Service) Create(ctx context.Context, growerID string, req *models.ForecastRequest) (*models.Forecast, error) {
	in, fieldErrors := Validate(req)
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	ctx, span := s.tracer.Start(ctx, "forecast.Create")
	defer span.End()

	f := &Forecast{
		ID:        "fct_" + uuid.New().String()[:22],
		GrowerID:  growerID,
		Input:     in,
		Result:    s.predict(ctx, in, true),
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Create(ctx, f); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store forecast")
		return nil, fmt.Errorf("store forecast: %w", err)
	}

	s.logger.Info().
		Str("forecast_id", f.ID).
		Str("crop_id", in.CropID).
		Int("total_yield_kg", f.Result.TotalYieldKg).
		Msg("forecast stored")

	result := toAPIForecast(f)
	return &result, nil
}

// Get retrieves a stored forecast.
func (s *Service) Get(ctx context.Context, growerID, forecastID string) (*models.Forecast, error) {
	f, err := s.repo.GetByGrowerAndID(ctx, growerID, forecastID)
	if err != nil {
		return nil, err
	}

	result := toAPIForecast(f)
	return &result, nil
}

// List retrieves a page of the grower's forecasts, newest first.
func (s *Service) List(ctx context.Context, growerID string, limit int, cursor string) (*models.PagedForecasts, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	result, err := s.repo.List(ctx, growerID, ListOptions{Limit: limit, Cursor: cursor})
	if err != nil {
		return nil, err
	}

	items := make([]models.Forecast, 0, len(result.Items))
	for _, f := range result.Items {
		items = append(items, toAPIForecast(f))
	}

	var nextCursor *string
	if result.NextCursor != "" {
		nextCursor = &result.NextCursor
	}

	return &models.PagedForecasts{
		Items: items,
		Meta: models.PagedResponseMeta{
			Limit:      limit,
			NextCursor: nextCursor,
		},
	}, nil
}

// Delete removes a stored forecast.
func (s *Service) Delete(ctx context.Context, growerID, forecastID string) error {
	return s.repo.Delete(ctx, growerID, forecastID)
}

// FromWeather computes a preview whose temperature and humidity come from
// the current weather at the greenhouse location. When the request has no
// light duration the observed daylight window is used.
func (s *Service) FromWeather(ctx context.Context, req *models.WeatherForecastRequest) (*models.WeatherForecast, error) {
	if s.weather == nil {
		return nil, ErrWeatherUnavailable
	}

	in, fieldErrors := ValidateWeatherRequest(req)
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	ctx, span := s.tracer.Start(ctx, "forecast.FromWeather",
		trace.WithAttributes(attribute.String("weather.provider", s.weather.Name())))
	defer span.End()

	obs, err := s.weather.GetCurrentWeather(ctx, req.Location.Lat, req.Location.Lon)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "weather lookup")
		s.logger.Warn().Err(err).
			Float64("lat", req.Location.Lat).
			Float64("lon", req.Location.Lon).
			Msg("weather lookup failed")
		if errors.Is(err, weather.ErrInvalidCoordinates) {
			return nil, &ValidationError{Errors: []models.FieldError{{
				Field: "location", Message: "is not a valid coordinate", Code: models.CodeOutOfRange,
			}}}
		}
		return nil, fmt.Errorf("%w: %v", ErrWeatherUnavailable, err)
	}

	in.TemperatureC = obs.Temperature
	in.HumidityPercent = min(max(obs.Humidity, 0), MaxHumidity)
	if req.LightHoursPerDay == nil {
		daylight := obs.DaylightHours()
		if daylight <= 0 {
			return nil, &ValidationError{Errors: []models.FieldError{{
				Field: "lightHoursPerDay", Message: "is required when daylight is unknown", Code: models.CodeRequired,
			}}}
		}
		in.LightHoursPerDay = round(daylight*10) / 10
	}

	if obs.Stale {
		s.logger.Warn().Time("observed_at", obs.ObservedAt).Msg("forecast uses stale weather")
	}

	res := s.predict(ctx, in, false)

	return &models.WeatherForecast{
		Conditions: models.WeatherConditions{
			Provider:        s.weather.Name(),
			TemperatureC:    obs.Temperature,
			HumidityPercent: obs.Humidity,
			ObservedAt:      models.Timestamp(obs.ObservedAt),
		},
		Input:  toAPIInput(in),
		Result: toAPIResult(res),
	}, nil
}

func (s *Service) predict(ctx context.Context, in Input, stored bool) Result {
	res := s.engine.Predict(in)
	s.metrics.Record(ctx, res, stored)

	if res.UsedDefaultProfile {
		s.logger.Debug().Str("crop_id", in.CropID).Msg("unknown crop, default profile used")
	}
	return res
}

// ToAPIPreview converts an input and its result to the API preview model.
func ToAPIPreview(in Input, res Result) models.ForecastPreview {
	return models.ForecastPreview{
		Input:  toAPIInput(in),
		Result: toAPIResult(res),
	}
}

func toAPIForecast(f *Forecast) models.Forecast {
	return models.Forecast{
		ID:        f.ID,
		Input:     toAPIInput(f.Input),
		Result:    toAPIResult(f.Result),
		CreatedAt: models.Timestamp(f.CreatedAt),
	}
}

func toAPIInput(in Input) models.ForecastInput {
	return models.ForecastInput{
		CropID:           in.CropID,
		TemperatureC:     in.TemperatureC,
		HumidityPercent:  in.HumidityPercent,
		LightHoursPerDay: in.LightHoursPerDay,
		GrowthPeriodDays: in.GrowthPeriodDays,
		AreaSquareMeters: in.AreaSquareMeters,
	}
}

func toAPIResult(res Result) models.ForecastResult {
	series := make([]models.MonthlyYield, 0, len(res.MonthlySeries))
	for _, m := range res.MonthlySeries {
		series = append(series, models.MonthlyYield{Month: m.Month, YieldKg: m.YieldKg})
	}

	return models.ForecastResult{
		CropID:               res.CropID,
		UsedDefaultProfile:   res.UsedDefaultProfile,
		TotalYieldKg:         res.TotalYieldKg,
		YieldDensityKgPerSqm: res.YieldDensityKgPerSqm,
		QualityScorePercent:  res.QualityScorePercent,
		MonthlySeries:        series,
		Recommendations:      res.Recommendations,
	}
}
