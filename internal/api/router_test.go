package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenyield/greenyield/internal/api"
	"github.com/greenyield/greenyield/internal/api/models"
	"github.com/greenyield/greenyield/internal/auth"
	"github.com/greenyield/greenyield/internal/crop"
	"github.com/greenyield/greenyield/internal/forecast"
	"github.com/greenyield/greenyield/internal/provider/resilience"
	"github.com/greenyield/greenyield/internal/weather"
)

type midpointSource struct{}

func (midpointSource) Float64() float64 { return 0.5 }

type stubWeather struct {
	obs *weather.Observation
	err error
}

func (s *stubWeather) GetCurrentWeather(context.Context, float64, float64) (*weather.Observation, error) {
	return s.obs, s.err
}

func (s *stubWeather) Name() string { return "stub" }

type testServer struct {
	handler http.Handler
	jwt     *auth.JWTService
}

func newTestServer(t *testing.T, w forecast.WeatherSource) *testServer {
	t.Helper()

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "router-test-signing-key-0123456789abcdef",
		Issuer:     "https://api.greenyield.io",
		Audience:   "greenyield-api",
		TTL:        time.Hour,
	})
	require.NoError(t, err)

	table := crop.DefaultTable()
	svc := forecast.NewService(forecast.ServiceConfig{
		Engine:     forecast.NewEngine(table, forecast.WithRandomSource(midpointSource{})),
		Repository: forecast.NewInMemoryRepository(),
		Weather:    w,
		Logger:     zerolog.Nop(),
	})

	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "openweathermap", Registry: registry})

	return &testServer{
		handler: api.NewRouter(api.RouterConfig{
			Version:         "test",
			BuildTime:       "now",
			Logger:          zerolog.Nop(),
			Tokens:          jwtService,
			CropTable:       table,
			ForecastService: svc,
			Providers:       registry,
		}),
		jwt: jwtService,
	}
}

func (s *testServer) token(t *testing.T, growerID string) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(growerID)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func tomatoBody() map[string]any {
	return map[string]any{
		"cropId":           "tomato",
		"temperatureC":     24,
		"humidityPercent":  70,
		"lightHoursPerDay": 14,
		"growthPeriodDays": 90,
		"areaSquareMeters": 100,
	}
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/v1/ops/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	health := decode[models.Health](t, rec)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_Ready(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/v1/ops/ready", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.HealthStatusOK, decode[models.Health](t, rec).Status)
}

func TestRouter_SystemStatus(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/v1/ops/status", "", nil).Code)

	rec := s.do(t, http.MethodGet, "/v1/ops/status", s.token(t, "grw_ops"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode[models.SystemStatus](t, rec)
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "storage", status.Subsystems[0].Name)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "openweathermap", status.Providers[0].Provider)
	assert.Equal(t, models.HealthStatusOK, status.Providers[0].Status)
}

func TestRouter_Crops(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/v1/crops", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ids []string
	for _, c := range decode[models.CropList](t, rec).Items {
		ids = append(ids, c.ID)
		assert.False(t, c.IsDefault)
	}
	assert.ElementsMatch(t, crop.SelectableIDs, ids)
}

func TestRouter_GetCrop(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/v1/crops/tomato", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tomato := decode[models.CropProfile](t, rec)
	assert.Equal(t, "tomato", tomato.ID)
	assert.Equal(t, models.Range{Min: 20, Max: 28}, tomato.OptimalTemperatureC)
	assert.False(t, tomato.IsDefault)

	rec = s.do(t, http.MethodGet, "/v1/crops/unknown_xyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fallback := decode[models.CropProfile](t, rec)
	assert.True(t, fallback.IsDefault)
	assert.Equal(t, 20.0, fallback.BaseYieldDensity)
	assert.Equal(t, models.Range{Min: 60, Max: 80}, fallback.OptimalHumidityPercent)
}

func TestRouter_Preview(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/forecasts:preview", "", tomatoBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	preview := decode[models.ForecastPreview](t, rec)
	assert.Equal(t, 3795, preview.Result.TotalYieldKg)
	assert.Equal(t, 95, preview.Result.QualityScorePercent)
	assert.InDelta(t, 38.0, preview.Result.YieldDensityKgPerSqm, 0.1)
	assert.False(t, preview.Result.UsedDefaultProfile)

	want := []models.MonthlyYield{
		{Month: "Jan", YieldKg: 380},
		{Month: "Feb", YieldKg: 949},
		{Month: "Mar", YieldKg: 1518},
		{Month: "Apr", YieldKg: 2087},
		{Month: "May", YieldKg: 2657},
		{Month: "Jun", YieldKg: 3226},
	}
	if diff := cmp.Diff(want, preview.Result.MonthlySeries); diff != "" {
		t.Errorf("monthly series mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, preview.Result.Recommendations, 3)
}

func TestRouter_Preview_UnknownCrop(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/forecasts:preview", "", map[string]any{
		"cropId":           "unknown_xyz",
		"temperatureC":     10,
		"humidityPercent":  40,
		"lightHoursPerDay": 8,
		"growthPeriodDays": 60,
		"areaSquareMeters": 50,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	preview := decode[models.ForecastPreview](t, rec)
	assert.True(t, preview.Result.UsedDefaultProfile)
	assert.Equal(t, 1000, preview.Result.TotalYieldKg)
	assert.Equal(t, 80, preview.Result.QualityScorePercent)
	assert.Len(t, preview.Result.Recommendations, 3)
}

func TestRouter_Preview_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)

	missing := tomatoBody()
	delete(missing, "humidityPercent")

	tests := []struct {
		name      string
		body      any
		wantField string
	}{
		{"malformed json", `{"cropId":`, ""},
		{"unknown field", `{"cropId":"tomato","soil":"clay"}`, ""},
		{"missing humidity", missing, "humidityPercent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/v1/forecasts:preview", "", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			problem := decode[models.Problem](t, rec)
			assert.Equal(t, models.ProblemTypeValidation, problem.Type)
			assert.Equal(t, "/v1/forecasts:preview", problem.Instance)
			assert.NotEmpty(t, problem.TraceID)
			if tt.wantField != "" {
				require.NotEmpty(t, problem.Errors)
				assert.Equal(t, tt.wantField, problem.Errors[0].Field)
			}
		})
	}
}

func TestRouter_Preview_RejectsNonJSON(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/forecasts:preview", strings.NewReader("cropId=tomato"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_FromWeather(t *testing.T) {
	sunrise := time.Date(2026, 6, 21, 3, 18, 0, 0, time.UTC)
	s := newTestServer(t, &stubWeather{obs: &weather.Observation{
		Temperature: 25,
		Humidity:    72,
		Sunrise:     sunrise,
		Sunset:      sunrise.Add(16*time.Hour + 30*time.Minute),
		ObservedAt:  sunrise.Add(6 * time.Hour),
	}})

	rec := s.do(t, http.MethodPost, "/v1/forecasts:fromWeather", "", map[string]any{
		"cropId":           "tomato",
		"location":         map[string]any{"lat": 52.0, "lon": 4.3},
		"lightHoursPerDay": 14,
		"growthPeriodDays": 90,
		"areaSquareMeters": 100,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[models.WeatherForecast](t, rec)
	assert.Equal(t, "stub", out.Conditions.Provider)
	assert.Equal(t, 25.0, out.Input.TemperatureC)
	assert.Equal(t, 72.0, out.Input.HumidityPercent)
	assert.Equal(t, 3795, out.Result.TotalYieldKg)
}

func TestRouter_FromWeather_Unavailable(t *testing.T) {
	body := map[string]any{
		"cropId":           "tomato",
		"location":         map[string]any{"lat": 52.0, "lon": 4.3},
		"lightHoursPerDay": 14,
		"growthPeriodDays": 90,
		"areaSquareMeters": 100,
	}

	t.Run("no provider configured", func(t *testing.T) {
		s := newTestServer(t, nil)
		assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodPost, "/v1/forecasts:fromWeather", "", body).Code)
	})

	t.Run("provider failing", func(t *testing.T) {
		s := newTestServer(t, &stubWeather{err: errors.New("connection refused")})
		rec := s.do(t, http.MethodPost, "/v1/forecasts:fromWeather", "", body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, models.ProblemTypeUnavailable, decode[models.Problem](t, rec).Type)
	})
}

func TestRouter_Forecasts_RequireAuth(t *testing.T) {
	s := newTestServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/forecasts"},
		{http.MethodPost, "/v1/forecasts"},
		{http.MethodGet, "/v1/forecasts/fct_1"},
		{http.MethodDelete, "/v1/forecasts/fct_1"},
	} {
		rec := s.do(t, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouter_Forecasts_Lifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "grw_alpha")

	rec := s.do(t, http.MethodPost, "/v1/forecasts", token, tomatoBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Forecast](t, rec)
	assert.True(t, strings.HasPrefix(created.ID, "fct_"))
	assert.Equal(t, "/v1/forecasts/"+created.ID, rec.Header().Get("Location"))
	assert.Equal(t, 3795, created.Result.TotalYieldKg)

	rec = s.do(t, http.MethodGet, "/v1/forecasts/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Forecast](t, rec)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 90.0, got.Input.GrowthPeriodDays)

	rec = s.do(t, http.MethodGet, "/v1/forecasts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.PagedForecasts](t, rec)
	require.Len(t, page.Items, 1)
	assert.Nil(t, page.Meta.NextCursor)

	// Other growers cannot see or delete it.
	other := s.token(t, "grw_beta")
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/forecasts/"+created.ID, other, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/v1/forecasts/"+created.ID, other, nil).Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/v1/forecasts/"+created.ID, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/forecasts/"+created.ID, token, nil).Code)
}

func TestRouter_ListForecasts_Pagination(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "grw_pages")

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/forecasts", token, tomatoBody()).Code)
	}

	rec := s.do(t, http.MethodGet, "/v1/forecasts?limit=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[models.PagedForecasts](t, rec)
	require.Len(t, first.Items, 2)
	require.NotNil(t, first.Meta.NextCursor)

	rec = s.do(t, http.MethodGet, "/v1/forecasts?limit=2&cursor="+*first.Meta.NextCursor, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[models.PagedForecasts](t, rec)
	require.Len(t, second.Items, 1)
	assert.Nil(t, second.Meta.NextCursor)

	for _, limit := range []string{"0", "-1", "abc", "101"} {
		rec := s.do(t, http.MethodGet, "/v1/forecasts?limit="+limit, token, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
		problem := decode[models.Problem](t, rec)
		require.Len(t, problem.Errors, 1)
		assert.Equal(t, "limit", problem.Errors[0].Field)
		assert.Equal(t, models.CodeOutOfRange, problem.Errors[0].Code)
	}
}

func TestRouter_ListForecasts_StaleCursor(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, "grw_stale")

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/forecasts", token, tomatoBody()).Code)
	}

	first := decode[models.PagedForecasts](t, s.do(t, http.MethodGet, "/v1/forecasts?limit=1", token, nil))
	require.NotNil(t, first.Meta.NextCursor)
	cursor := *first.Meta.NextCursor
	require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/v1/forecasts/"+cursor, token, nil).Code)

	rec := s.do(t, http.MethodGet, "/v1/forecasts?limit=1&cursor="+cursor, token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decode[models.Problem](t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "cursor", problem.Errors[0].Field)
	assert.Equal(t, models.CodeInvalidCursor, problem.Errors[0].Code)
}
