package winder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/eventwinder/pkg/winder/observability"
)

// Subscription is one registered interest in an event type, backed by its own
// queue and its own goroutine for the lifetime of the engine.
//
// Envelopes are handled strictly in emit order. A subscription stops only when
// its handler fails with no error handler to take the failure, or when the
// engine is closed.
type Subscription struct {
	id     string
	name   string
	engine *Engine
	entry  *entry
	queue  *queue
	run    *handler

	mu   sync.Mutex
	err  error
	done chan struct{}
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	capacity    int
	capacitySet bool
	name        string
}

// WithCapacity bounds the subscription's queue. Zero means unbounded.
// The engine's OverrunPolicy decides what Emit does when the queue is full.
func WithCapacity(n int) SubscribeOption {
	return func(c *subscribeConfig) {
		if n >= 0 {
			c.capacity = n
			c.capacitySet = true
		}
	}
}

// WithSubscriberName labels the subscription in logs.
func WithSubscriberName(name string) SubscribeOption {
	return func(c *subscribeConfig) {
		c.name = name
	}
}

func newSubscriptionID() string {
	return "sub-" + uuid.New().String()[:8]
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Name returns the label given with WithSubscriberName, or the ID.
func (s *Subscription) Name() string {
	if s.name != "" {
		return s.name
	}
	return s.id
}

// EventType returns the name of the subscribed event type.
func (s *Subscription) EventType() string {
	return s.entry.typ.name
}

// Pending returns the number of envelopes waiting in the queue.
func (s *Subscription) Pending() int {
	return s.queue.len()
}

// Done is closed when the subscription's goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure that terminated the subscription, or nil.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// wait blocks until the subscription exits or ctx ends.
func (s *Subscription) wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop consumes the queue until it is closed or a failure goes unhandled.
func (s *Subscription) loop() {
	defer close(s.done)
	for {
		env, ok := s.queue.pop()
		if !ok {
			return
		}
		if !s.deliver(env) {
			return
		}
	}
}

// deliver handles one envelope and reports whether the subscription lives on.
func (s *Subscription) deliver(env envelope) bool {
	e := s.engine
	t := s.entry.typ

	start := time.Now()
	queueTime := start.Sub(env.emitTime)

	ctx, span := e.spans.StartHandleSpan(e.baseCtx, t.name, s.id, queueTime)
	err := s.run.call(ctx, env.payload)
	e.spans.EndSpanWithError(span, err)

	alive := true
	var failure *HandlingFailure
	if err != nil {
		failure = &HandlingFailure{
			EventType:    t.name,
			SubscriberID: s.id,
			Err:          err,
			Payload:      renderPayload(env.payload),
			EmitTime:     env.emitTime,
		}
		alive = e.resolve(ctx, s, failure)
	}

	e.publishHandled(t, env.emitTime, queueTime, time.Since(start), err == nil)

	if !alive {
		s.terminate(failure)
	}
	return alive
}

// terminate removes the subscription from fan-out after an unhandled failure.
func (s *Subscription) terminate(failure *HandlingFailure) {
	s.mu.Lock()
	s.err = failure
	s.mu.Unlock()

	s.entry.remove(s)
	discarded := s.queue.discard()

	observability.LogSubscriberTerminated(s.engine.logger, failure.EventType, s.id, failure.Err, failure.Payload, discarded)
	s.engine.metrics.RecordTerminated(s.engine.baseCtx, failure.EventType)
}
