package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenyield/greenyield/internal/api/models"
	"github.com/greenyield/greenyield/internal/crop"
	"github.com/greenyield/greenyield/internal/forecast"
	"github.com/greenyield/greenyield/internal/worker"
)

type midpointSource struct{}

func (midpointSource) Float64() float64 { return 0.5 }

func ptr(v float64) *float64 { return &v }

func request(cropID string, area float64) models.ForecastRequest {
	return models.ForecastRequest{
		CropID:           cropID,
		TemperatureC:     ptr(24),
		HumidityPercent:  ptr(70),
		LightHoursPerDay: ptr(14),
		GrowthPeriodDays: ptr(90),
		AreaSquareMeters: ptr(area),
	}
}

func newForecastService() (*forecast.Service, *forecast.InMemoryRepository) {
	repo := forecast.NewInMemoryRepository()
	return forecast.NewService(forecast.ServiceConfig{
		Engine:     forecast.NewEngine(crop.DefaultTable(), forecast.WithRandomSource(midpointSource{})),
		Repository: repo,
		Logger:     zerolog.Nop(),
	}), repo
}

// slowCreator records the highest number of concurrent Create calls.
type slowCreator struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (c *slowCreator) Create(ctx context.Context, _ string, req *models.ForecastRequest) (*models.Forecast, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &models.Forecast{ID: "fct_" + req.CropID}, nil
}

func TestBatchJob_Run_StoresForecasts(t *testing.T) {
	svc, repo := newForecastService()
	job := worker.NewBatchJob(svc, worker.Config{}, zerolog.Nop())

	inputs := []models.ForecastRequest{request("tomato", 100), request("lettuce", 20), request("unknown_xyz", 50)}
	result, err := job.Run(context.Background(), "grw_batch", inputs)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Succeeded)
	assert.Zero(t, result.Failed)
	for _, id := range result.ForecastIDs {
		assert.NotEmpty(t, id)
	}

	stored, err := repo.List(context.Background(), "grw_batch", forecast.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, stored.Items, 3)
}

func TestBatchJob_Run_CollectsItemErrors(t *testing.T) {
	svc, _ := newForecastService()
	job := worker.NewBatchJob(svc, worker.Config{Concurrency: 2}, zerolog.Nop())

	inputs := []models.ForecastRequest{request("tomato", 100), request("tomato", -5), request("pepper", 10), request("", 10)}
	result, err := job.Run(context.Background(), "grw_batch", inputs)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, 3, result.Errors[1].Index)

	var validationErr *forecast.ValidationError
	assert.ErrorAs(t, result.Errors[0].Err, &validationErr)
	assert.Empty(t, result.ForecastIDs[1])
	assert.NotEmpty(t, result.ForecastIDs[2])
}

func TestBatchJob_Run_RespectsConcurrency(t *testing.T) {
	creator := &slowCreator{delay: 20 * time.Millisecond}
	job := worker.NewBatchJob(creator, worker.Config{Concurrency: 3}, zerolog.Nop())

	inputs := make([]models.ForecastRequest, 12)
	for i := range inputs {
		inputs[i] = request("tomato", 10)
	}

	result, err := job.Run(context.Background(), "grw_batch", inputs)
	require.NoError(t, err)

	assert.Equal(t, 12, result.Succeeded)
	assert.LessOrEqual(t, creator.peak.Load(), int32(3))
	assert.Greater(t, creator.peak.Load(), int32(1))
}

func TestBatchJob_Run_ItemTimeout(t *testing.T) {
	creator := &slowCreator{delay: time.Second}
	job := worker.NewBatchJob(creator, worker.Config{ItemTimeout: 10 * time.Millisecond}, zerolog.Nop())

	result, err := job.Run(context.Background(), "grw_batch", []models.ForecastRequest{request("tomato", 10)})
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0].Err, context.DeadlineExceeded)
}

func TestBatchJob_Run_CancelledContext(t *testing.T) {
	svc, _ := newForecastService()
	job := worker.NewBatchJob(svc, worker.Config{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := job.Run(ctx, "grw_batch", []models.ForecastRequest{request("tomato", 10), request("tomato", 20)})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	for _, itemErr := range result.Errors {
		assert.ErrorIs(t, itemErr.Err, context.Canceled)
	}
}

func TestBatchJob_Run_RejectsBadBatches(t *testing.T) {
	svc, _ := newForecastService()
	job := worker.NewBatchJob(svc, worker.Config{MaxBatchItems: 2}, zerolog.Nop())

	tests := []struct {
		name     string
		growerID string
		inputs   []models.ForecastRequest
		want     error
	}{
		{"no grower", "", []models.ForecastRequest{request("tomato", 1)}, worker.ErrMissingGrower},
		{"empty", "grw_1", nil, worker.ErrEmptyBatch},
		{"too large", "grw_1", make([]models.ForecastRequest, 3), worker.ErrBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := job.Run(context.Background(), tt.growerID, tt.inputs)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
