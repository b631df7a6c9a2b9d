// Package winder is an in-process event engine: producers emit typed events
// and independently registered subscribers receive them asynchronously,
// without the producer knowing who, if anyone, is listening.
//
// # Registering Events
//
// Event types are declared once, before any traffic, with a name and an
// ordered payload shape. Scope builds namespaced names:
//
//	engine := winder.New()
//	engine.MustRegister(winder.Scope("User", "Connected"),
//	    winder.WithPayload(reflect.TypeFor[string](), reflect.TypeFor[int]()),
//	)
//
// The first Emit or Subscribe seals the registry.
//
// # Subscribing
//
// Handlers receive the payload destructured into their parameters. A leading
// context.Context and a trailing error result are optional:
//
//	engine.Subscribe("User::Connected", func(name string, visits int) {
//	    fmt.Printf("%s visited us %d times\n", name, visits)
//	})
//
// Each subscription owns a queue and a goroutine. Envelopes are handled in
// emit order per subscription; different subscriptions are independent.
//
// # Emitting
//
//	err := engine.Emit(ctx, "User::Connected", "John Smith", 8)
//
// Emit validates the payload, enqueues it for every subscriber, and returns.
// It never waits for handlers.
//
// # Error Handling
//
// A handler fails when it returns an error or panics. The failure goes to
// the event type's error handler (WithErrorHandler), else to the engine's
// default error handler (SetDefaultErrorHandler). With neither, the failing
// subscriber stops for good: it is logged at Error level, Subscription.Err
// reports why, and every other subscriber keeps running.
//
// # Monitoring
//
// The engine monitors itself with two ordinary event types. EmittedType is
// published before fan-out and HandledType after each handling. Neither
// exposes the original payload, and neither monitors itself. Only the engine
// publishes them; Emit rejects both with ErrMonitoringType:
//
//	engine.Subscribe(winder.HandledType, winder.OnHandled(func(ctx context.Context, h winder.Handled) {
//	    if h.QueueTime > time.Second {
//	        alert("queue backlog on " + h.EventType)
//	    }
//	}))
//
// The number of Emitted subscribers summed over all Emitted records minus
// the number of Handled records should stay near zero; the monitor package
// tracks it.
//
// # Delivery Guarantees
//
// Queues live in memory only: delivery is at most once and pending envelopes
// are lost when the process exits.
//
// Emit deep-copies the payload, and every handler invocation receives its own
// copy, so neither the producer nor another subscriber ever sees a mutation.
// Error values, channels, functions and unexported struct fields are shared.
package winder
