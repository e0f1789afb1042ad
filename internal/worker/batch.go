package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/greenyield/greenyield/internal/api/models"
)

var (
	// ErrEmptyBatch is returned for a batch without inputs.
	ErrEmptyBatch = errors.New("batch has no inputs")

	// ErrBatchTooLarge is returned when a batch exceeds MaxBatchItems.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrMissingGrower is returned when a batch has no grower id.
	ErrMissingGrower = errors.New("batch has no grower id")
)

// ForecastCreator stores forecasts on behalf of a grower.
type ForecastCreator interface {
	Create(ctx context.Context, growerID string, req *models.ForecastRequest) (*models.Forecast, error)
}

// BatchJob computes and stores many forecasts for one grower.
type BatchJob struct {
	creator ForecastCreator
	config  Config
	logger  zerolog.Logger
}

// NewBatchJob creates a batch job. Zero config values take the defaults.
func NewBatchJob(creator ForecastCreator, cfg Config, logger zerolog.Logger) *BatchJob {
	def := DefaultConfig()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = def.ItemTimeout
	}
	if cfg.MaxBatchItems < 1 {
		cfg.MaxBatchItems = def.MaxBatchItems
	}
	return &BatchJob{creator: creator, config: cfg, logger: logger}
}

// ItemError records the failure of one batch input.
type ItemError struct {
	Index int
	Err   error
}

// BatchResult summarizes a batch run. ForecastIDs is indexed like the
// inputs, with "" for failed items.
type BatchResult struct {
	Total       int
	Succeeded   int
	Failed      int
	ForecastIDs []string
	Errors      []ItemError
	Duration    time.Duration
}

// Run creates a forecast for every input. Item failures are collected in the
// result rather than aborting the batch; inputs not started before ctx is
// cancelled fail with the context error.
func (j *BatchJob) Run(ctx context.Context, growerID string, inputs []models.ForecastRequest) (*BatchResult, error) {
	switch {
	case growerID == "":
		return nil, ErrMissingGrower
	case len(inputs) == 0:
		return nil, ErrEmptyBatch
	case len(inputs) > j.config.MaxBatchItems:
		return nil, fmt.Errorf("%w: %d inputs, limit %d", ErrBatchTooLarge, len(inputs), j.config.MaxBatchItems)
	}

	start := time.Now()
	result := &BatchResult{
		Total:       len(inputs),
		ForecastIDs: make([]string, len(inputs)),
	}

	var mu sync.Mutex
	fail := func(i int, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Errors = append(result.Errors, ItemError{Index: i, Err: err})
	}

	var g errgroup.Group
	g.SetLimit(j.config.Concurrency)

	for i := range inputs {
		if err := ctx.Err(); err != nil {
			fail(i, err)
			continue
		}
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(ctx, j.config.ItemTimeout)
			defer cancel()

			created, err := j.creator.Create(itemCtx, growerID, &inputs[i])
			if err != nil {
				fail(i, err)
				return nil
			}
			result.ForecastIDs[i] = created.ID
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Errors, func(a, b int) bool { return result.Errors[a].Index < result.Errors[b].Index })
	result.Failed = len(result.Errors)
	result.Succeeded = result.Total - result.Failed
	result.Duration = time.Since(start)

	j.logger.Info().
		Str("grower_id", growerID).
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("forecast batch completed")

	return result, nil
}
