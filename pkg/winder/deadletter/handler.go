package deadletter

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/eventwinder/pkg/winder"
	"github.com/randalmurphal/eventwinder/pkg/winder/observability"
)

// HandlerOption configures Handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	logger  *slog.Logger
	timeout time.Duration
	next    winder.ErrorHandler
}

// WithLogger sets the logger for store errors. Default: slog.Default().
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(c *handlerConfig) {
		c.logger = logger
	}
}

// WithTimeout bounds each store write. Default: 5 seconds. Zero means no bound.
func WithTimeout(d time.Duration) HandlerOption {
	return func(c *handlerConfig) {
		c.timeout = d
	}
}

// WithNext chains another error handler, called after the entry is recorded.
func WithNext(next winder.ErrorHandler) HandlerOption {
	return func(c *handlerConfig) {
		c.next = next
	}
}

// Handler returns an error handler that records every failure in store.
//
// A failed write is logged and swallowed: the subscriber keeps running
// either way.
func Handler(store Store, opts ...HandlerOption) winder.ErrorHandler {
	cfg := handlerConfig{
		logger:  slog.Default(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, failure *winder.HandlingFailure) {
		entry := &Entry{
			EventType:    failure.EventType,
			SubscriberID: failure.SubscriberID,
			Payload:      failure.Payload,
			EmitTime:     failure.EmitTime,
			FailedAt:     time.Now(),
		}
		if failure.Err != nil {
			entry.Error = failure.Err.Error()
		}

		writeCtx := ctx
		if cfg.timeout > 0 {
			var cancel context.CancelFunc
			writeCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
			defer cancel()
		}

		if err := store.Record(writeCtx, entry); err != nil {
			observability.LogDeadLetterFailed(cfg.logger, failure.EventType, failure.SubscriberID, err)
		}

		if cfg.next != nil {
			cfg.next(ctx, failure)
		}
	}
}
