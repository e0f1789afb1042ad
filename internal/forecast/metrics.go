package forecast

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/greenyield/greenyield/internal/forecast"

// Metrics holds the forecast instruments.
type Metrics struct {
	computed metric.Int64Counter
	quality  metric.Int64Histogram
	yield    metric.Float64Histogram
}

// NewMetrics creates the forecast instruments on mp, or on the global
// meter provider when mp is nil.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	computed, err := meter.Int64Counter(
		"forecast.computed.total",
		metric.WithDescription("Number of computed yield forecasts"),
		metric.WithUnit("{forecast}"),
	)
	if err != nil {
		return nil, err
	}

	quality, err := meter.Int64Histogram(
		"forecast.quality_score",
		metric.WithDescription("Quality score of computed forecasts"),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(80, 85, 88, 92, 95),
	)
	if err != nil {
		return nil, err
	}

	yield, err := meter.Float64Histogram(
		"forecast.yield_density",
		metric.WithDescription("Forecast yield density"),
		metric.WithUnit("kg/m2"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{computed: computed, quality: quality, yield: yield}, nil
}

// Record records one computed forecast. Safe to call on a nil receiver.
func (m *Metrics) Record(ctx context.Context, res Result, stored bool) {
	if m == nil {
		return
	}

	crop := res.CropID
	if res.UsedDefaultProfile {
		// Free-form ids would blow up cardinality.
		crop = "unknown"
	}
	attrs := metric.WithAttributes(
		attribute.String("crop", crop),
		attribute.Bool("stored", stored),
	)

	m.computed.Add(ctx, 1, attrs)
	m.quality.Record(ctx, int64(res.QualityScorePercent), attrs)
	m.yield.Record(ctx, res.YieldDensityKgPerSqm, attrs)
}
