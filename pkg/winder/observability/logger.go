// Package observability provides structured logging, metrics, and tracing
// for the winder dispatch engine.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Every Log* helper accepts a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// LogRegistered logs registration of an event type.
func LogRegistered(logger *slog.Logger, eventType string, arity int) {
	if logger == nil {
		return
	}
	logger.Debug("event type registered",
		slog.String("event_type", eventType),
		slog.Int("arity", arity),
	)
}

// LogSubscribed logs a new subscription.
func LogSubscribed(logger *slog.Logger, eventType, subscriberID string, capacity int) {
	if logger == nil {
		return
	}
	logger.Debug("subscriber started",
		slog.String("event_type", eventType),
		slog.String("subscriber_id", subscriberID),
		slog.Int("capacity", capacity),
	)
}

// LogHandleFailed logs a handling failure that an error handler will resolve.
func LogHandleFailed(logger *slog.Logger, eventType, subscriberID string, err error, payload string) {
	if logger == nil {
		return
	}
	logger.Debug("handler failed",
		slog.String("event_type", eventType),
		slog.String("subscriber_id", subscriberID),
		slog.String("error", err.Error()),
		slog.String("payload", payload),
	)
}

// LogSubscriberTerminated logs a subscriber stopped by an unresolved failure.
// It is logged at Error level because the subscriber silently stops
// receiving events from here on.
func LogSubscriberTerminated(logger *slog.Logger, eventType, subscriberID string, err error, payload string, discarded int) {
	if logger == nil {
		return
	}
	logger.Error("subscriber terminated by unhandled error",
		slog.String("event_type", eventType),
		slog.String("subscriber_id", subscriberID),
		slog.String("error", err.Error()),
		slog.String("payload", payload),
		slog.Int("discarded_envelopes", discarded),
	)
}

// LogPolicyPanic logs an error handler that panicked.
func LogPolicyPanic(logger *slog.Logger, eventType, subscriberID string, value any) {
	if logger == nil {
		return
	}
	logger.Error("error handler panicked",
		slog.String("event_type", eventType),
		slog.String("subscriber_id", subscriberID),
		slog.Any("panic", value),
	)
}

// LogEnvelopeDropped logs an envelope discarded by a full bounded queue.
func LogEnvelopeDropped(logger *slog.Logger, eventType, subscriberID string, capacity int) {
	if logger == nil {
		return
	}
	logger.Warn("queue full, oldest envelope dropped",
		slog.String("event_type", eventType),
		slog.String("subscriber_id", subscriberID),
		slog.Int("capacity", capacity),
	)
}

// LogSlowHandling logs an envelope whose queue or handling time exceeded a threshold.
func LogSlowHandling(logger *slog.Logger, eventType, kind string, took, threshold time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("slow event handling",
		slog.String("event_type", eventType),
		slog.String("kind", kind),
		slog.Float64("duration_ms", float64(took.Microseconds())/1000),
		slog.Float64("threshold_ms", float64(threshold.Microseconds())/1000),
	)
}

// LogDeadLetterFailed logs a failure that could not be written to a dead letter store.
func LogDeadLetterFailed(logger *slog.Logger, eventType, subscriberID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("dead letter record failed",
		slog.String("event_type", eventType),
		slog.String("subscriber_id", subscriberID),
		slog.String("error", err.Error()),
	)
}

// LogClosed logs engine shutdown.
func LogClosed(logger *slog.Logger, subscribers int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("engine closed",
		slog.Int("subscribers", subscribers),
		slog.Float64("duration_ms", durationMs),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
