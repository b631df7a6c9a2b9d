// Package monitor turns the engine's built-in monitoring events into metrics,
// slow-handling alerts, and a delivery balance.
//
// Attach after all event types are registered, since it subscribes:
//
//	m := monitor.New(engine,
//	    monitor.WithMetrics(observability.NewMetricsRecorder()),
//	    monitor.OnQueueAlert(func(ctx context.Context, h winder.Handled, threshold time.Duration) {
//	        pager.Notify(h.EventType + " is backing up")
//	    }),
//	)
//	if err := m.Attach(); err != nil {
//	    return err
//	}
//
// The defaults follow the usual rule of thumb: an envelope queued for more
// than a second means subscribers cannot keep up, and a handler running for
// more than ten seconds is probably stuck.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/eventwinder/pkg/winder"
	"github.com/randalmurphal/eventwinder/pkg/winder/observability"
)

// Default alert thresholds.
const (
	DefaultQueueThreshold  = time.Second
	DefaultHandleThreshold = 10 * time.Second
)

// ErrAlreadyAttached is returned by a second call to Attach.
var ErrAlreadyAttached = errors.New("monitor already attached")

// AlertFunc is called when a handling crosses a threshold. It runs on the
// monitor's own subscriber goroutine.
type AlertFunc func(ctx context.Context, h winder.Handled, threshold time.Duration)

// Monitor consumes Emitted and Handled records from one engine.
type Monitor struct {
	engine  *winder.Engine
	metrics observability.MetricsRecorder
	logger  *slog.Logger

	queueThreshold  time.Duration
	handleThreshold time.Duration
	onQueueAlert    AlertFunc
	onHandlerAlert  AlertFunc

	emitted       atomic.Int64
	deliveries    atomic.Int64
	handled       atomic.Int64
	failures      atomic.Int64
	queueAlerts   atomic.Int64
	handlerAlerts atomic.Int64

	mu        sync.Mutex
	subs      []*winder.Subscription
	subscribe func(name string, fn any, opts ...winder.SubscribeOption) (*winder.Subscription, error)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithMetrics sets the metrics recorder. Default: no metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(mon *Monitor) {
		if m != nil {
			mon.metrics = m
		}
	}
}

// WithLogger sets the logger for slow-handling warnings. Default: slog.Default().
// Pass nil to disable them.
func WithLogger(logger *slog.Logger) Option {
	return func(mon *Monitor) {
		mon.logger = logger
	}
}

// WithQueueThreshold sets the queue time above which a queue alert fires.
// Zero disables queue alerts.
func WithQueueThreshold(d time.Duration) Option {
	return func(mon *Monitor) {
		mon.queueThreshold = d
	}
}

// WithHandleThreshold sets the handle time above which a handler alert fires.
// Zero disables handler alerts.
func WithHandleThreshold(d time.Duration) Option {
	return func(mon *Monitor) {
		mon.handleThreshold = d
	}
}

// OnQueueAlert registers the callback for queue alerts.
func OnQueueAlert(fn AlertFunc) Option {
	return func(mon *Monitor) {
		mon.onQueueAlert = fn
	}
}

// OnHandlerAlert registers the callback for handler alerts.
func OnHandlerAlert(fn AlertFunc) Option {
	return func(mon *Monitor) {
		mon.onHandlerAlert = fn
	}
}

// New creates a monitor for engine. Nothing is observed until Attach.
func New(engine *winder.Engine, opts ...Option) *Monitor {
	m := &Monitor{
		engine:          engine,
		metrics:         observability.NoopMetrics{},
		logger:          slog.Default(),
		queueThreshold:  DefaultQueueThreshold,
		handleThreshold: DefaultHandleThreshold,
	}
	m.subscribe = engine.Subscribe
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attach subscribes the monitor to both monitoring event types.
//
// A failed Attach keeps the subscriptions it already made; calling it again
// adds only the missing ones, so no record is counted twice.
func (m *Monitor) Attach() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	targets := []struct {
		eventType string
		fn        any
		name      string
	}{
		{winder.EmittedType, winder.OnEmitted(m.observeEmitted), "monitor.emitted"},
		{winder.HandledType, winder.OnHandled(m.observeHandled), "monitor.handled"},
	}
	if len(m.subs) == len(targets) {
		return ErrAlreadyAttached
	}

	for _, t := range targets[len(m.subs):] {
		sub, err := m.subscribe(t.eventType, t.fn, winder.WithSubscriberName(t.name))
		if err != nil {
			return err
		}
		m.subs = append(m.subs, sub)
	}
	return nil
}

func (m *Monitor) observeEmitted(ctx context.Context, rec winder.Emitted) {
	m.emitted.Add(1)
	m.deliveries.Add(int64(rec.Subscribers))
	m.metrics.RecordEmitted(ctx, rec.EventType, rec.Subscribers)
}

func (m *Monitor) observeHandled(ctx context.Context, rec winder.Handled) {
	m.handled.Add(1)
	if !rec.Success {
		m.failures.Add(1)
	}
	m.metrics.RecordHandled(ctx, rec.EventType, rec.QueueTime, rec.HandleTime, rec.Success)

	if m.queueThreshold > 0 && rec.QueueTime > m.queueThreshold {
		m.queueAlerts.Add(1)
		observability.LogSlowHandling(m.logger, rec.EventType, "queue", rec.QueueTime, m.queueThreshold)
		if m.onQueueAlert != nil {
			m.onQueueAlert(ctx, rec, m.queueThreshold)
		}
	}
	if m.handleThreshold > 0 && rec.HandleTime > m.handleThreshold {
		m.handlerAlerts.Add(1)
		observability.LogSlowHandling(m.logger, rec.EventType, "handle", rec.HandleTime, m.handleThreshold)
		if m.onHandlerAlert != nil {
			m.onHandlerAlert(ctx, rec, m.handleThreshold)
		}
	}
}

// Outstanding returns deliveries announced by Emitted records minus Handled
// records seen. It hovers near zero on a healthy engine; steady growth means
// envelopes are piling up or were discarded by a terminated subscriber.
//
// Emitted and Handled records travel through separate subscriptions, so the
// value may briefly dip below zero.
func (m *Monitor) Outstanding() int64 {
	return m.deliveries.Load() - m.handled.Load()
}

// Stats is a point-in-time snapshot of monitor counters.
type Stats struct {
	Emitted       int64 // Emitted records seen
	Deliveries    int64 // Sum of Emitted.Subscribers
	Handled       int64 // Handled records seen
	Failures      int64 // Handled records with Success=false
	QueueAlerts   int64 // Queue-time threshold crossings
	HandlerAlerts int64 // Handle-time threshold crossings
	Outstanding   int64 // Deliveries - Handled
}

// Stats returns the current counters.
func (m *Monitor) Stats() Stats {
	handled := m.handled.Load()
	deliveries := m.deliveries.Load()
	return Stats{
		Emitted:       m.emitted.Load(),
		Deliveries:    deliveries,
		Handled:       handled,
		Failures:      m.failures.Load(),
		QueueAlerts:   m.queueAlerts.Load(),
		HandlerAlerts: m.handlerAlerts.Load(),
		Outstanding:   deliveries - handled,
	}
}

// Subscriptions returns the monitor's subscriptions, Emitted first, or nil
// before Attach.
func (m *Monitor) Subscriptions() []*winder.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*winder.Subscription(nil), m.subs...)
}
