package winder

import (
	"context"
	"sync/atomic"
)

var defaultEngine atomic.Pointer[Engine]

func init() {
	defaultEngine.Store(New())
}

// Default returns the process-wide engine used by the package-level functions.
func Default() *Engine {
	return defaultEngine.Load()
}

// SetDefault replaces the process-wide engine. It is meant for program
// start-up, before any event type is registered on the default engine.
func SetDefault(e *Engine) {
	if e != nil {
		defaultEngine.Store(e)
	}
}

// Register adds an event type to the default engine.
func Register(name string, opts ...TypeOption) (*EventType, error) {
	return Default().Register(name, opts...)
}

// MustRegister adds an event type to the default engine, panicking on error.
func MustRegister(name string, opts ...TypeOption) *EventType {
	return Default().MustRegister(name, opts...)
}

// Subscribe starts a subscriber on the default engine.
func Subscribe(name string, fn any, opts ...SubscribeOption) (*Subscription, error) {
	return Default().Subscribe(name, fn, opts...)
}

// Emit publishes an event on the default engine.
func Emit(ctx context.Context, name string, payload ...any) error {
	return Default().Emit(ctx, name, payload...)
}

// SetDefaultErrorHandler sets the error handler of the default engine.
func SetDefaultErrorHandler(h ErrorHandler) {
	Default().SetDefaultErrorHandler(h)
}
