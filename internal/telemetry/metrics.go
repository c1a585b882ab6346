package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics groups the instruments recorded by the quote client, the tracker and the updater.
// The zero value and a nil *Metrics are both usable and record nothing.
type Metrics struct {
	quoteRequests   metric.Int64Counter
	quoteDuration   metric.Float64Histogram
	updaterItems    metric.Int64Counter
	samplesRecorded metric.Int64Counter
}

// NewMetrics creates the instruments on meter. A nil meter uses the global provider.
func NewMetrics(meter metric.Meter) *Metrics {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	m := &Metrics{}
	m.quoteRequests, _ = meter.Int64Counter("steam.quote.requests",
		metric.WithDescription("Requests sent to the Steam market"),
		metric.WithUnit("{request}"))
	m.quoteDuration, _ = meter.Float64Histogram("steam.quote.duration",
		metric.WithDescription("Latency of Steam market requests"),
		metric.WithUnit("ms"))
	m.updaterItems, _ = meter.Int64Counter("updater.items",
		metric.WithDescription("Items processed by the batch updater"),
		metric.WithUnit("{item}"))
	m.samplesRecorded, _ = meter.Int64Counter("tracker.samples.recorded",
		metric.WithDescription("Price samples appended to history"),
		metric.WithUnit("{sample}"))
	return m
}

// RecordQuote records one request to the Steam market.
func (m *Metrics) RecordQuote(ctx context.Context, endpoint, outcome string, took time.Duration) {
	if m == nil || m.quoteRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	)
	m.quoteRequests.Add(ctx, 1, attrs)
	m.quoteDuration.Record(ctx, float64(took.Microseconds())/1000.0, attrs)
}

// RecordUpdaterItem records the outcome of one item in a batch run.
func (m *Metrics) RecordUpdaterItem(ctx context.Context, outcome string) {
	if m == nil || m.updaterItems == nil {
		return
	}
	m.updaterItems.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSample counts an appended price sample.
func (m *Metrics) RecordSample(ctx context.Context) {
	if m == nil || m.samplesRecorded == nil {
		return
	}
	m.samplesRecorded.Add(ctx, 1)
}

// RecordUpdaterItemN records n items with the same outcome.
func (m *Metrics) RecordUpdaterItemN(ctx context.Context, outcome string, n int) {
	if m == nil || m.updaterItems == nil || n <= 0 {
		return
	}
	m.updaterItems.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
}
