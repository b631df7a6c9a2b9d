package winder

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/randalmurphal/eventwinder/pkg/winder/observability"
)

// ErrorHandler resolves a failure raised by a subscriber's handling logic.
//
// An ErrorHandler runs on the failing subscriber's goroutine, so it delays that
// subscriber's next envelope but no other subscriber. Once it returns, the
// failure counts as handled and the subscriber keeps running. A panic inside
// an ErrorHandler is treated as an unhandled failure.
type ErrorHandler func(ctx context.Context, failure *HandlingFailure)

// SetDefaultErrorHandler sets the engine-wide error handler used for event
// types registered without their own. Pass nil to remove it, which makes
// unhandled failures terminate their subscriber.
func (e *Engine) SetDefaultErrorHandler(h ErrorHandler) {
	if h == nil {
		e.defaultHandler.Store(nil)
		return
	}
	e.defaultHandler.Store(&h)
}

// errorHandlerFor picks the per-type handler first, then the engine default.
func (e *Engine) errorHandlerFor(t *EventType) ErrorHandler {
	if t.errorHandler != nil {
		return t.errorHandler
	}
	if h := e.defaultHandler.Load(); h != nil {
		return *h
	}
	return nil
}

// resolve applies the error policy chain to a failure. It reports false when
// no handler took the failure, in which case the subscriber must stop.
func (e *Engine) resolve(ctx context.Context, s *Subscription, failure *HandlingFailure) (resolved bool) {
	h := e.errorHandlerFor(s.entry.typ)
	if h == nil {
		return false
	}

	observability.LogHandleFailed(e.logger, failure.EventType, failure.SubscriberID, failure.Err, failure.Payload)

	defer func() {
		if r := recover(); r != nil {
			observability.LogPolicyPanic(e.logger, failure.EventType, failure.SubscriberID, r)
			failure.Err = errors.Join(failure.Err, &PanicError{Value: r, Stack: string(debug.Stack())})
			resolved = false
		}
	}()

	h(ctx, failure)
	return true
}
