package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL forecast repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectForecastColumns = `
	SELECT
		id, grower_id, crop_id,
		temperature_c, humidity_percent, light_hours_per_day,
		growth_period_days, area_square_meters,
		used_default_profile, yield_factor, total_yield_kg,
		yield_density_kg_per_sqm, quality_score_percent,
		monthly_series, recommendations, created_at
	FROM forecasts
`

// GetByGrowerAndID retrieves a forecast by grower ID and forecast ID.
func (r *PostgresRepository) GetByGrowerAndID(ctx context.Context, growerID, forecastID string) (*Forecast, error) {
	query := selectForecastColumns + `WHERE id = $1 AND grower_id = $2`

	f, err := scanForecast(r.pool.QueryRow(ctx, query, forecastID, growerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForecastNotFound
		}
		return nil, err
	}
	return f, nil
}

// List retrieves a grower's forecasts, newest first.
func (r *PostgresRepository) List(ctx context.Context, growerID string, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	var (
		rows pgx.Rows
		err  error
	)
	if opts.Cursor == "" {
		rows, err = r.pool.Query(ctx, selectForecastColumns+`
			WHERE grower_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, growerID, fetchLimit)
	} else {
		var after time.Time
		err = r.pool.QueryRow(ctx,
			`SELECT created_at FROM forecasts WHERE id = $1 AND grower_id = $2`,
			opts.Cursor, growerID,
		).Scan(&after)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCursor
		}
		if err != nil {
			return nil, err
		}

		rows, err = r.pool.Query(ctx, selectForecastColumns+`
			WHERE grower_id = $1 AND (created_at, id) < ($3, $4)
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, growerID, fetchLimit, after, opts.Cursor)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Forecast
	for rows.Next() {
		f, err := scanForecast(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.NextCursor = items[limit-1].ID
	}

	return result, nil
}

// Create stores a new forecast.
func (r *PostgresRepository) Create(ctx context.Context, f *Forecast) error {
	series, err := json.Marshal(f.Result.MonthlySeries)
	if err != nil {
		return fmt.Errorf("encode monthly series: %w", err)
	}

	query := `
		INSERT INTO forecasts (
			id, grower_id, crop_id,
			temperature_c, humidity_percent, light_hours_per_day,
			growth_period_days, area_square_meters,
			used_default_profile, yield_factor, total_yield_kg,
			yield_density_kg_per_sqm, quality_score_percent,
			monthly_series, recommendations, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.pool.Exec(ctx, query,
		f.ID,
		f.GrowerID,
		f.Input.CropID,
		f.Input.TemperatureC,
		f.Input.HumidityPercent,
		f.Input.LightHoursPerDay,
		f.Input.GrowthPeriodDays,
		f.Input.AreaSquareMeters,
		f.Result.UsedDefaultProfile,
		f.Result.YieldFactor,
		f.Result.TotalYieldKg,
		f.Result.YieldDensityKgPerSqm,
		f.Result.QualityScorePercent,
		series,
		f.Result.Recommendations,
		f.CreatedAt,
	)
	return err
}

// Delete removes a forecast owned by a grower.
func (r *PostgresRepository) Delete(ctx context.Context, growerID, forecastID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM forecasts WHERE id = $1 AND grower_id = $2`, forecastID, growerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrForecastNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// scanForecast scans a forecast from a row.
func scanForecast(row pgx.Row) (*Forecast, error) {
	var (
		f      Forecast
		series []byte
	)

	err := row.Scan(
		&f.ID,
		&f.GrowerID,
		&f.Input.CropID,
		&f.Input.TemperatureC,
		&f.Input.HumidityPercent,
		&f.Input.LightHoursPerDay,
		&f.Input.GrowthPeriodDays,
		&f.Input.AreaSquareMeters,
		&f.Result.UsedDefaultProfile,
		&f.Result.YieldFactor,
		&f.Result.TotalYieldKg,
		&f.Result.YieldDensityKgPerSqm,
		&f.Result.QualityScorePercent,
		&series,
		&f.Result.Recommendations,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(series, &f.Result.MonthlySeries); err != nil {
		return nil, fmt.Errorf("decode monthly series: %w", err)
	}
	f.Result.CropID = f.Input.CropID

	return &f, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
