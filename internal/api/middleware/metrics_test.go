package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/greenyield/greenyield/internal/api/middleware"
)

func newTestMetrics(t *testing.T) (*middleware.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := middleware.NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

// requestCounts returns request totals keyed by "route status".
func requestCounts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http.server.request.total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("http.route")
				status, _ := dp.Attributes.Value("http.response.status_code")
				counts[route.AsString()+" "+status.AsString()] += dp.Value
			}
		}
	}
	return counts
}

func TestNewMetrics_GlobalProvider(t *testing.T) {
	m, err := middleware.NewMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	m, reader := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.Middleware())
	r.Get("/v1/forecasts/{forecastId}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "forecastId") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("{}"))
	})

	for _, id := range []string{"fct_1", "fct_2", "missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/forecasts/"+id, http.NoBody))
	}

	assert.Equal(t, map[string]int64{
		"/v1/forecasts/{forecastId} 200": 2,
		"/v1/forecasts/{forecastId} 404": 1,
	}, requestCounts(t, reader))
}

func TestMetrics_UnroutedRequests(t *testing.T) {
	m, reader := newTestMetrics(t)

	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/anything/42", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]int64{"unmatched 500": 1}, requestCounts(t, reader))
}
