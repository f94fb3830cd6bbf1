package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records send, fallback and retry counters for senders.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordSend records one send attempt with its duration and outcome.
	RecordSend(ctx context.Context, meta SenderMeta, duration time.Duration, err error)

	// RecordFallback records a candidate failure that moved a fallback
	// chain on to its next candidate (or exhausted it).
	RecordFallback(ctx context.Context, meta SenderMeta, err error)

	// RecordRetry records a scheduled retry after attempt number attempt
	// failed.
	RecordRetry(ctx context.Context, meta SenderMeta, attempt int, err error)
}

type metricsImpl struct {
	totalCount    metric.Int64Counter
	errorCount    metric.Int64Counter
	durationHist  metric.Float64Histogram
	fallbackCount metric.Int64Counter
	retryCount    metric.Int64Counter
}

// NewMetrics registers the notify.* instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"notify.send.total",
		metric.WithDescription("Total number of send attempts"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"notify.send.errors",
		metric.WithDescription("Total number of failed send attempts"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"notify.send.duration_ms",
		metric.WithDescription("Send duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	fallbackCount, err := meter.Int64Counter(
		"notify.fallback.total",
		metric.WithDescription("Candidate failures handled by a fallback chain"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	retryCount, err := meter.Int64Counter(
		"notify.retry.total",
		metric.WithDescription("Retries scheduled after a failed attempt"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:    totalCount,
		errorCount:    errorCount,
		durationHist:  durationHist,
		fallbackCount: fallbackCount,
		retryCount:    retryCount,
	}, nil
}

func (m *metricsImpl) RecordSend(ctx context.Context, meta SenderMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordFallback(ctx context.Context, meta SenderMeta, _ error) {
	m.fallbackCount.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

func (m *metricsImpl) RecordRetry(ctx context.Context, meta SenderMeta, attempt int, _ error) {
	attrs := append(meta.attributes(), attribute.Int("retry.attempt", attempt))
	m.retryCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordSend(context.Context, SenderMeta, time.Duration, error) {}
func (noopMetrics) RecordFallback(context.Context, SenderMeta, error)           {}
func (noopMetrics) RecordRetry(context.Context, SenderMeta, int, error)         {}
