package winder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/randalmurphal/eventwinder/pkg/winder/config"
	"github.com/randalmurphal/eventwinder/pkg/winder/observability"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Default: slog.Default().
// Pass nil to disable logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the recorder for drop and termination metrics.
// Emit and handling metrics flow through the monitoring event types instead;
// see the monitor package.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracing enables one OpenTelemetry span per handler invocation,
// using the global tracer provider.
func WithTracing() Option {
	return WithSpanManager(observability.NewSpanManager())
}

// WithSpanManager sets the span manager used around handler invocations.
func WithSpanManager(spans observability.SpanManager) Option {
	return func(e *Engine) {
		if spans != nil {
			e.spans = spans
		}
	}
}

// WithQueueCapacity sets the default queue capacity for new subscriptions.
// Default: 0 (unbounded). WithCapacity overrides it per subscription.
func WithQueueCapacity(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.queueCapacity = n
		}
	}
}

// WithOverrunPolicy sets what Emit does when a bounded queue is full.
// Default: Block.
func WithOverrunPolicy(p OverrunPolicy) Option {
	return func(e *Engine) {
		e.overrun = p
	}
}

// WithDefaultErrorHandler sets the engine-wide error handler.
func WithDefaultErrorHandler(h ErrorHandler) Option {
	return func(e *Engine) {
		e.SetDefaultErrorHandler(h)
	}
}

// WithBaseContext sets the context handed to handlers and error handlers.
// Default: context.Background().
func WithBaseContext(ctx context.Context) Option {
	return func(e *Engine) {
		if ctx != nil {
			e.baseCtx = ctx
		}
	}
}

// ParseOverrunPolicy parses a policy name as written in configuration.
func ParseOverrunPolicy(s string) (OverrunPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return Block, nil
	case "drop_oldest", "drop-oldest":
		return DropOldest, nil
	case "error", "return_error":
		return ReturnError, nil
	default:
		return Block, fmt.Errorf("unknown overrun policy %q", s)
	}
}

// OptionsFromConfig builds engine options from configuration.
//
// Recognized keys:
//   - queue_capacity (int): default queue capacity, 0 = unbounded
//   - overrun_policy (string): block, drop_oldest, or error
//   - log_level (string): debug, info, warn, or error
//   - log_format (string): text or json (default text, written to stderr)
//   - tracing (bool): enable handler spans
func OptionsFromConfig(cfg config.Config) ([]Option, error) {
	var opts []Option

	if cfg.Has("queue_capacity") {
		n := cfg.Int("queue_capacity", -1)
		if n < 0 {
			return nil, fmt.Errorf("queue_capacity must be a non-negative integer")
		}
		opts = append(opts, WithQueueCapacity(n))
	}

	if cfg.Has("overrun_policy") {
		p, err := ParseOverrunPolicy(cfg.String("overrun_policy", ""))
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithOverrunPolicy(p))
	}

	if cfg.Has("log_level") || cfg.Has("log_format") {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.String("log_level", "info"))); err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
		handlerOpts := &slog.HandlerOptions{Level: level}
		var h slog.Handler
		switch format := cfg.String("log_format", "text"); format {
		case "text":
			h = slog.NewTextHandler(os.Stderr, handlerOpts)
		case "json":
			h = slog.NewJSONHandler(os.Stderr, handlerOpts)
		default:
			return nil, fmt.Errorf("unknown log_format %q", format)
		}
		opts = append(opts, WithLogger(slog.New(h)))
	}

	if cfg.Bool("tracing", false) {
		opts = append(opts, WithTracing())
	}

	return opts, nil
}
