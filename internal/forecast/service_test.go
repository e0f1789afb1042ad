package forecast_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/greenyield/greenyield/internal/api/models"
	"github.com/greenyield/greenyield/internal/crop"
	"github.com/greenyield/greenyield/internal/forecast"
	"github.com/greenyield/greenyield/internal/weather"
)

// stubWeather returns a fixed observation or error.
type stubWeather struct {
	obs *weather.Observation
	err error
}

func (s *stubWeather) GetCurrentWeather(_ context.Context, _, _ float64) (*weather.Observation, error) {
	return s.obs, s.err
}

func (s *stubWeather) Name() string { return "stub" }

var fixedNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, w forecast.WeatherSource) (*forecast.Service, *forecast.InMemoryRepository) {
	t.Helper()
	repo := forecast.NewInMemoryRepository()
	svc := forecast.NewService(forecast.ServiceConfig{
		Engine:     forecast.NewEngine(crop.DefaultTable(), forecast.WithRandomSource(fixedSource(0.5))),
		Repository: repo,
		Weather:    w,
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return fixedNow },
	})
	return svc, repo
}

func TestService_Preview(t *testing.T) {
	svc, repo := newTestService(t, nil)

	preview, err := svc.Preview(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "tomato", preview.Input.CropID)
	assert.Equal(t, 90.0, preview.Input.GrowthPeriodDays)
	assert.Equal(t, 3795, preview.Result.TotalYieldKg)
	assert.Equal(t, 95, preview.Result.QualityScorePercent)
	assert.Len(t, preview.Result.MonthlySeries, 6)
	assert.Equal(t, "Jan", preview.Result.MonthlySeries[0].Month)

	list, err := repo.List(context.Background(), "", forecast.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list.Items, "preview must not store anything")
}

func TestService_Preview_ValidationError(t *testing.T) {
	svc, _ := newTestService(t, nil)

	req := validRequest()
	req.AreaSquareMeters = ptr(-1)

	_, err := svc.Preview(context.Background(), req)

	var validationErr *forecast.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Len(t, validationErr.Errors, 1)
	assert.Equal(t, "areaSquareMeters", validationErr.Errors[0].Field)
}

func TestService_CreateGetListDelete(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "grw_a", validRequest())
	require.NoError(t, err)
	assert.Regexp(t, `^fct_[0-9a-f-]{22}$`, created.ID)
	assert.Equal(t, fixedNow, created.CreatedAt.Time())

	got, err := svc.Get(ctx, "grw_a", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = svc.Get(ctx, "grw_b", created.ID)
	assert.ErrorIs(t, err, forecast.ErrForecastNotFound)

	page, err := svc.List(ctx, "grw_a", 0, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, forecast.DefaultListLimit, page.Meta.Limit)
	assert.Nil(t, page.Meta.NextCursor)

	require.NoError(t, svc.Delete(ctx, "grw_a", created.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "grw_a", created.ID), forecast.ErrForecastNotFound)
}

func TestService_ListCapsLimit(t *testing.T) {
	svc, _ := newTestService(t, nil)

	page, err := svc.List(context.Background(), "grw_a", 1000, "")
	require.NoError(t, err)
	assert.Equal(t, forecast.MaxListLimit, page.Meta.Limit)
	assert.Empty(t, page.Items)
}

func TestService_FromWeather(t *testing.T) {
	sunrise := time.Date(2026, 6, 21, 3, 20, 0, 0, time.UTC)
	w := &stubWeather{obs: &weather.Observation{
		Temperature: 23,
		Humidity:    65,
		Sunrise:     sunrise,
		Sunset:      sunrise.Add(14*time.Hour + 30*time.Minute),
		ObservedAt:  fixedNow,
	}}
	svc, _ := newTestService(t, w)
	require.True(t, svc.WeatherEnabled())

	got, err := svc.FromWeather(context.Background(), &models.WeatherForecastRequest{
		CropID:           "pepper",
		Location:         &models.Point{Lat: 51.98, Lon: 4.13},
		GrowthPeriodDays: ptr(70),
		AreaSquareMeters: ptr(200),
	})
	require.NoError(t, err)

	assert.Equal(t, "stub", got.Conditions.Provider)
	assert.Equal(t, 23.0, got.Input.TemperatureC)
	assert.Equal(t, 65.0, got.Input.HumidityPercent)
	assert.Equal(t, 14.5, got.Input.LightHoursPerDay)
	assert.Equal(t, 95, got.Result.QualityScorePercent)
}

func TestService_FromWeather_ExplicitLightWins(t *testing.T) {
	w := &stubWeather{obs: &weather.Observation{Temperature: 10, Humidity: 40}}
	svc, _ := newTestService(t, w)

	got, err := svc.FromWeather(context.Background(), &models.WeatherForecastRequest{
		CropID:           "unknown_xyz",
		Location:         &models.Point{Lat: 51.98, Lon: 4.13},
		LightHoursPerDay: ptr(8),
		GrowthPeriodDays: ptr(60),
		AreaSquareMeters: ptr(50),
	})
	require.NoError(t, err)

	assert.Equal(t, 8.0, got.Input.LightHoursPerDay)
	assert.True(t, got.Result.UsedDefaultProfile)
	assert.Equal(t, 80, got.Result.QualityScorePercent)
	assert.Len(t, got.Result.Recommendations, 3)
}

func TestService_FromWeather_UnknownDaylight(t *testing.T) {
	svc, _ := newTestService(t, &stubWeather{obs: &weather.Observation{Temperature: 20, Humidity: 70}})

	_, err := svc.FromWeather(context.Background(), &models.WeatherForecastRequest{
		CropID:           "tomato",
		Location:         &models.Point{Lat: 51.98, Lon: 4.13},
		GrowthPeriodDays: ptr(60),
		AreaSquareMeters: ptr(50),
	})

	var validationErr *forecast.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "lightHoursPerDay", validationErr.Errors[0].Field)
}

func TestService_FromWeather_Unavailable(t *testing.T) {
	req := &models.WeatherForecastRequest{
		CropID:           "tomato",
		Location:         &models.Point{Lat: 51.98, Lon: 4.13},
		LightHoursPerDay: ptr(14),
		GrowthPeriodDays: ptr(60),
		AreaSquareMeters: ptr(50),
	}

	t.Run("no provider", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		assert.False(t, svc.WeatherEnabled())

		_, err := svc.FromWeather(context.Background(), req)
		assert.ErrorIs(t, err, forecast.ErrWeatherUnavailable)
	})

	t.Run("provider error", func(t *testing.T) {
		svc, _ := newTestService(t, &stubWeather{err: weather.ErrProviderUnavailable})

		_, err := svc.FromWeather(context.Background(), req)
		assert.ErrorIs(t, err, forecast.ErrWeatherUnavailable)
	})
}

type failingRepository struct {
	*forecast.InMemoryRepository
}

func (failingRepository) Create(context.Context, *forecast.Forecast) error {
	return errors.New("connection reset")
}

func TestService_Create_StoreErrorIsTraced(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	svc := forecast.NewService(forecast.ServiceConfig{
		Repository: failingRepository{forecast.NewInMemoryRepository()},
		Logger:     zerolog.Nop(),
	})

	_, err := svc.Create(context.Background(), "grw_a", validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store forecast")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "forecast.Create", spans[0].Name)
	assert.Equal(t, "Error", spans[0].Status.Code.String())
}

func TestService_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := forecast.NewMetrics(mp)
	require.NoError(t, err)

	svc := forecast.NewService(forecast.ServiceConfig{
		Engine:     forecast.NewEngine(nil, forecast.WithRandomSource(fixedSource(0.5))),
		Repository: forecast.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
		Metrics:    metrics,
	})

	_, err = svc.Preview(context.Background(), validRequest())
	require.NoError(t, err)
	unknown := validRequest()
	unknown.CropID = "unknown_xyz"
	_, err = svc.Create(context.Background(), "grw_a", unknown)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "forecast.computed.total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				crop, _ := dp.Attributes.Value("crop")
				counts[crop.AsString()] += dp.Value
			}
		}
	}

	assert.Equal(t, map[string]int64{"tomato": 1, "unknown": 1}, counts)
}
