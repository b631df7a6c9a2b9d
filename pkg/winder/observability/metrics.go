package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records dispatch engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEmitted records one emit fanned out to the given number of subscribers.
	RecordEmitted(ctx context.Context, eventType string, subscribers int)

	// RecordHandled records one handled envelope.
	RecordHandled(ctx context.Context, eventType string, queueTime, handleTime time.Duration, success bool)

	// RecordDropped records an envelope dropped by a full bounded queue.
	RecordDropped(ctx context.Context, eventType string)

	// RecordTerminated records a subscriber stopped by an unresolved failure.
	RecordTerminated(ctx context.Context, eventType string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	emitted    metric.Int64Counter
	deliveries metric.Int64Counter
	handled    metric.Int64Counter
	failures   metric.Int64Counter
	queueTime  metric.Float64Histogram
	handleTime metric.Float64Histogram
	dropped    metric.Int64Counter
	terminated metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("winder")

	emitted, err := meter.Int64Counter("winder.events.emitted",
		metric.WithDescription("Number of emit calls"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("winder.events.deliveries",
		metric.WithDescription("Number of envelopes enqueued to subscribers"),
	)
	if err != nil {
		return nil, err
	}

	handled, err := meter.Int64Counter("winder.events.handled",
		metric.WithDescription("Number of envelopes handled"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("winder.events.failures",
		metric.WithDescription("Number of envelopes whose handler failed"),
	)
	if err != nil {
		return nil, err
	}

	queueTime, err := meter.Float64Histogram("winder.queue.latency_ms",
		metric.WithDescription("Time between emit and start of handling in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handleTime, err := meter.Float64Histogram("winder.handle.latency_ms",
		metric.WithDescription("Handler execution time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter("winder.events.dropped",
		metric.WithDescription("Number of envelopes dropped by full bounded queues"),
	)
	if err != nil {
		return nil, err
	}

	terminated, err := meter.Int64Counter("winder.subscribers.terminated",
		metric.WithDescription("Number of subscribers stopped by unhandled errors"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		emitted:    emitted,
		deliveries: deliveries,
		handled:    handled,
		failures:   failures,
		queueTime:  queueTime,
		handleTime: handleTime,
		dropped:    dropped,
		terminated: terminated,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEmitted records an emit.
func (m *otelMetrics) RecordEmitted(ctx context.Context, eventType string, subscribers int) {
	attrs := metric.WithAttributes(attribute.String("event_type", eventType))
	m.emitted.Add(ctx, 1, attrs)
	m.deliveries.Add(ctx, int64(subscribers), attrs)
}

// RecordHandled records a handled envelope.
func (m *otelMetrics) RecordHandled(ctx context.Context, eventType string, queueTime, handleTime time.Duration, success bool) {
	attrs := metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.Bool("success", success),
	)
	m.handled.Add(ctx, 1, attrs)
	m.queueTime.Record(ctx, millis(queueTime), attrs)
	m.handleTime.Record(ctx, millis(handleTime), attrs)
	if !success {
		m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
	}
}

// RecordDropped records a dropped envelope.
func (m *otelMetrics) RecordDropped(ctx context.Context, eventType string) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordTerminated records a terminated subscriber.
func (m *otelMetrics) RecordTerminated(ctx context.Context, eventType string) {
	m.terminated.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
