package winder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/eventwinder/pkg/winder/observability"
	"golang.org/x/sync/errgroup"
)

// Engine is an in-process publish/subscribe dispatcher.
//
// An engine has two phases. During initialization event types are registered
// with Register. The first Emit or Subscribe seals the registry; from then on
// Register fails with ErrRegistrationClosed and type lookups are lock-free.
//
// Every subscription owns one FIFO queue and one goroutine. Emit only enqueues:
// it never waits for a handler, so a slow or stuck subscriber delays its own
// envelopes and nothing else.
type Engine struct {
	reg *registry

	emitted *entry
	handled *entry

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	baseCtx context.Context

	queueCapacity int
	overrun       OverrunPolicy

	defaultHandler atomic.Pointer[ErrorHandler]

	closed atomic.Bool
	subsMu sync.Mutex
	subs   []*Subscription
}

// New creates an engine with the built-in monitoring types registered.
func New(opts ...Option) *Engine {
	e := &Engine{
		reg:     newRegistry(),
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		baseCtx: context.Background(),
		overrun: Block,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registerMonitoring()
	return e
}

// Register adds an event type. It fails with a *RegistrationError when the
// name is empty or taken, or when traffic has already started.
//
//	connected, err := engine.Register(winder.Scope("User", "Connected"),
//	    winder.WithPayload(reflect.TypeFor[string](), reflect.TypeFor[int]()),
//	)
func (e *Engine) Register(name string, opts ...TypeOption) (*EventType, error) {
	t := &EventType{name: name}
	for _, opt := range opts {
		opt(t)
	}
	if err := e.reg.register(t); err != nil {
		return nil, err
	}
	observability.LogRegistered(e.logger, t.name, t.Arity())
	return t, nil
}

// MustRegister is like Register but panics on error.
func (e *Engine) MustRegister(name string, opts ...TypeOption) *EventType {
	t, err := e.Register(name, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to register event type: %v", err))
	}
	return t
}

// Lookup returns the registered event type with the given name.
func (e *Engine) Lookup(name string) (*EventType, bool) {
	ent, ok := e.reg.get(name)
	if !ok {
		return nil, false
	}
	return ent.typ, true
}

// Types returns all registered event type names, sorted.
func (e *Engine) Types() []string {
	return e.reg.names()
}

// Subscribers returns the number of live subscriptions for an event type.
func (e *Engine) Subscribers(name string) int {
	ent, ok := e.reg.get(name)
	if !ok {
		return 0
	}
	return len(ent.live())
}

// Subscribe starts a subscriber for an event type. fn receives the payload
// destructured into its parameters and may take a leading context.Context and
// return an error:
//
//	engine.Subscribe("User::Connected", func(ctx context.Context, name string, visits int) error {
//	    ...
//	})
//
// A handler whose parameter count differs from the declared payload arity is
// rejected with *ArityMismatchError; one whose parameter types cannot accept
// the declared payload is rejected with *ShapeMismatchError.
func (e *Engine) Subscribe(name string, fn any, opts ...SubscribeOption) (*Subscription, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	ent, ok := e.reg.get(name)
	if !ok {
		return nil, fmt.Errorf("subscribe %q: %w", name, ErrUnknownType)
	}
	h, err := adaptHandler(ent.typ, fn)
	if err != nil {
		return nil, err
	}
	e.reg.seal()

	cfg := subscribeConfig{capacity: e.queueCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	if ent.typ.monitoring {
		// fire-and-forget: monitoring must never block the emitter
		cfg.capacity = 0
	}

	s := &Subscription{
		id:     newSubscriptionID(),
		name:   cfg.name,
		engine: e,
		entry:  ent,
		queue:  newQueue(cfg.capacity, e.overrun),
		run:    h,
		done:   make(chan struct{}),
	}

	e.subsMu.Lock()
	if e.closed.Load() {
		e.subsMu.Unlock()
		return nil, ErrEngineClosed
	}
	e.subs = append(e.subs, s)
	e.subsMu.Unlock()

	ent.add(s)
	go s.loop()

	observability.LogSubscribed(e.logger, name, s.Name(), cfg.capacity)
	return s, nil
}

// MustSubscribe is like Subscribe but panics on error.
func (e *Engine) MustSubscribe(name string, fn any, opts ...SubscribeOption) *Subscription {
	s, err := e.Subscribe(name, fn, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to subscribe: %v", err))
	}
	return s
}

// Emit publishes an event to every live subscriber of its type and returns
// without waiting for any of them.
//
// The payload is checked against the declared shape first; a mismatch is
// returned as *ShapeMismatchError and nothing is enqueued. ctx only matters
// for bounded queues under the Block policy, where it limits how long Emit
// may wait for room.
//
// The monitoring types are emitted by the engine only; Emit rejects them with
// ErrMonitoringType. If Close runs concurrently, Emit may return
// ErrEngineClosed after some subscribers were already served.
func (e *Engine) Emit(ctx context.Context, name string, payload ...any) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	ent, ok := e.reg.get(name)
	if !ok {
		return &ShapeMismatchError{EventType: name, Index: -1, Err: ErrUnknownType}
	}
	if ent.typ.monitoring {
		return fmt.Errorf("emit %q: %w", name, ErrMonitoringType)
	}
	e.reg.seal()

	if err := ent.typ.checkPayload(payload); err != nil {
		return err
	}

	env := envelope{
		emitTime: time.Now(),
		payload:  clonePayload(payload),
	}

	subs := ent.live()
	e.publishEmitted(ctx, ent.typ, env.emitTime, len(subs))
	return e.fanOut(ctx, ent, subs, env)
}

// fanOut enqueues env to each subscriber in subscription order.
func (e *Engine) fanOut(ctx context.Context, ent *entry, subs []*Subscription, env envelope) error {
	var errs []error
	closing := false
	for _, s := range subs {
		res, err := s.queue.push(ctx, env)
		switch res {
		case pushClosed:
			// terminated subscribers close their own queue; anything else is Close
			if s.Err() == nil && e.closed.Load() {
				closing = true
			}
		case pushedDropped:
			observability.LogEnvelopeDropped(e.logger, ent.typ.name, s.id, s.queue.capacity)
			e.metrics.RecordDropped(ctx, ent.typ.name)
		case pushRejected:
			if err == nil {
				err = &QueueFullError{EventType: ent.typ.name, SubscriberID: s.id, Capacity: s.queue.capacity}
			}
			errs = append(errs, err)
		}
	}
	if closing {
		errs = append(errs, ErrEngineClosed)
	}
	return errors.Join(errs...)
}

// Close stops the engine. Emit and Subscribe fail with ErrEngineClosed from
// here on; envelopes already queued are still handled. Close waits until every
// subscriber has drained its queue or ctx ends.
//
// Monitoring subscribers are drained last so they see the Handled records of
// everything handled during shutdown.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	done := observability.TimedOperation()

	e.subsMu.Lock()
	var regular, monitoring []*Subscription
	for _, s := range e.subs {
		if s.entry.typ.monitoring {
			monitoring = append(monitoring, s)
		} else {
			regular = append(regular, s)
		}
	}
	e.subsMu.Unlock()

	err := drain(ctx, regular)
	if err != nil {
		for _, s := range monitoring {
			s.queue.close()
		}
	} else {
		err = drain(ctx, monitoring)
	}

	observability.LogClosed(e.logger, len(regular)+len(monitoring), done())
	return err
}

// drain closes the queues of subs and waits for their goroutines to exit.
func drain(ctx context.Context, subs []*Subscription) error {
	for _, s := range subs {
		s.queue.close()
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range subs {
		g.Go(func() error {
			return s.wait(gctx)
		})
	}
	return g.Wait()
}
