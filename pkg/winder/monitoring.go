package winder

import (
	"context"
	"reflect"
	"time"
)

// Built-in monitoring event types. Every engine registers both.
//
// Subscribe to them like any other event type:
//
//	engine.Subscribe(winder.EmittedType, func(eventType string, emitTime time.Time, subscribers int) {
//	    ...
//	})
//
//	engine.Subscribe(winder.HandledType, func(eventType string, emitTime time.Time, queueTime, handleTime time.Duration, success bool) {
//	    ...
//	})
//
// Monitoring events never produce monitoring events about themselves, and
// they never expose the payload of the event they describe.
const (
	EmittedType = "winder::Emitted"
	HandledType = "winder::Handled"
)

var (
	emittedShape = []reflect.Type{
		reflect.TypeFor[string](),
		reflect.TypeFor[time.Time](),
		reflect.TypeFor[int](),
	}
	handledShape = []reflect.Type{
		reflect.TypeFor[string](),
		reflect.TypeFor[time.Time](),
		reflect.TypeFor[time.Duration](),
		reflect.TypeFor[time.Duration](),
		reflect.TypeFor[bool](),
	}
)

// Emitted is published before an event is fanned out.
type Emitted struct {
	// EventType is the emitted event type.
	EventType string
	// EmitTime is when Emit was called.
	EmitTime time.Time
	// Subscribers is the number of subscribers the event was delivered to.
	Subscribers int
}

// Handled is published after each subscriber finishes one envelope.
type Handled struct {
	// EventType is the handled event type.
	EventType string
	// EmitTime is when Emit was called.
	EmitTime time.Time
	// QueueTime is the time between emit and start of handling.
	QueueTime time.Duration
	// HandleTime is the time between start and end of handling.
	HandleTime time.Duration
	// Success is false when the handler returned an error or panicked.
	Success bool
}

// Total returns the time from emit to end of handling.
func (h Handled) Total() time.Duration {
	return h.QueueTime + h.HandleTime
}

// OnEmitted adapts a record-based function to the EmittedType payload shape.
//
//	engine.Subscribe(winder.EmittedType, winder.OnEmitted(func(ctx context.Context, rec winder.Emitted) {
//	    log.Printf("%s emitted to %d subscribers", rec.EventType, rec.Subscribers)
//	}))
func OnEmitted(fn func(context.Context, Emitted)) any {
	return func(ctx context.Context, eventType string, emitTime time.Time, subscribers int) {
		fn(ctx, Emitted{EventType: eventType, EmitTime: emitTime, Subscribers: subscribers})
	}
}

// OnHandled adapts a record-based function to the HandledType payload shape.
func OnHandled(fn func(context.Context, Handled)) any {
	return func(ctx context.Context, eventType string, emitTime time.Time, queueTime, handleTime time.Duration, success bool) {
		fn(ctx, Handled{
			EventType:  eventType,
			EmitTime:   emitTime,
			QueueTime:  queueTime,
			HandleTime: handleTime,
			Success:    success,
		})
	}
}

func (e *Engine) registerMonitoring() {
	e.emitted = e.mustRegisterBuiltin(EmittedType, emittedShape)
	e.handled = e.mustRegisterBuiltin(HandledType, handledShape)
}

func (e *Engine) mustRegisterBuiltin(name string, shape []reflect.Type) *entry {
	t := &EventType{name: name, payload: shape, monitoring: true}
	if err := e.reg.register(t); err != nil {
		panic(err)
	}
	ent, _ := e.reg.get(name)
	return ent
}

// publishEmitted sends an Emitted record, if anyone listens.
// Monitoring subscriptions are unbounded, so this never blocks.
func (e *Engine) publishEmitted(ctx context.Context, t *EventType, emitTime time.Time, subscribers int) {
	if t.monitoring {
		return
	}
	subs := e.emitted.live()
	if len(subs) == 0 {
		return
	}
	env := envelope{
		emitTime: time.Now(),
		payload:  []any{t.name, emitTime, subscribers},
	}
	_ = e.fanOut(ctx, e.emitted, subs, env)
}

// publishHandled sends a Handled record, if anyone listens.
func (e *Engine) publishHandled(t *EventType, emitTime time.Time, queueTime, handleTime time.Duration, success bool) {
	if t.monitoring {
		return
	}
	subs := e.handled.live()
	if len(subs) == 0 {
		return
	}
	env := envelope{
		emitTime: time.Now(),
		payload:  []any{t.name, emitTime, queueTime, handleTime, success},
	}
	_ = e.fanOut(e.baseCtx, e.handled, subs, env)
}
