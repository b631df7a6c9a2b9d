package winder

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Sentinel errors for registration and subscription.
var (
	// ErrDuplicateType indicates an event type name was registered twice.
	ErrDuplicateType = errors.New("event type already registered")

	// ErrRegistrationClosed indicates Register was called after the first
	// Emit or Subscribe on the engine.
	ErrRegistrationClosed = errors.New("registration closed: traffic has started")

	// ErrUnknownType indicates an operation referenced an unregistered event type.
	ErrUnknownType = errors.New("unknown event type")

	// ErrInvalidHandler indicates a handler is not a function of an accepted shape.
	ErrInvalidHandler = errors.New("invalid handler")
)

// Sentinel errors for traffic.
var (
	// ErrEngineClosed indicates Emit or Subscribe was called after Close.
	ErrEngineClosed = errors.New("engine closed")

	// ErrQueueFull indicates a bounded subscriber queue rejected an envelope.
	ErrQueueFull = errors.New("subscriber queue is full")

	// ErrMonitoringType indicates Emit was called for EmittedType or
	// HandledType, which only the engine publishes.
	ErrMonitoringType = errors.New("monitoring event types are published by the engine")
)

// RegistrationError reports a failed Register call.
type RegistrationError struct {
	// Name is the event type name that failed to register.
	Name string
	// Reason describes the failure when there is no underlying sentinel.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("register %q: %s: %v", e.Name, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("register %q: %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("register %q: %s", e.Name, e.Reason)
	}
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// ArityMismatchError reports a handler whose argument count differs from the
// declared payload arity of its event type.
type ArityMismatchError struct {
	EventType string
	// Want is the declared payload arity.
	Want int
	// Got is the number of payload arguments the handler accepts.
	Got int
}

// Error implements the error interface.
func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("event %s: handler takes %d payload argument(s), event declares %d", e.EventType, e.Got, e.Want)
}

// ShapeMismatchError reports a payload (or handler parameter list) that does
// not match the declared shape of an event type.
type ShapeMismatchError struct {
	EventType string
	// Index is the offending position, or -1 when the arity differs.
	Index int
	// Want is the declared shape.
	Want []reflect.Type
	// Got describes what was supplied.
	Got string
	// Err is set when the event type itself could not be resolved.
	Err error
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("event %s: %v", e.EventType, e.Err)
	}
	if e.Index < 0 {
		return fmt.Sprintf("event %s: payload %s does not match declared shape %s", e.EventType, e.Got, shapeString(e.Want))
	}
	return fmt.Sprintf("event %s: payload[%d] is %s, declared %s", e.EventType, e.Index, e.Got, e.Want[e.Index])
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ShapeMismatchError) Unwrap() error {
	return e.Err
}

// QueueFullError reports an envelope rejected by a bounded queue under the
// ReturnError overrun policy. Other subscribers of the same emit are unaffected.
type QueueFullError struct {
	EventType    string
	SubscriberID string
	Capacity     int
}

// Error implements the error interface.
func (e *QueueFullError) Error() string {
	return fmt.Sprintf("event %s: subscriber %s: queue full (capacity %d)", e.EventType, e.SubscriberID, e.Capacity)
}

// Unwrap returns ErrQueueFull.
func (e *QueueFullError) Unwrap() error {
	return ErrQueueFull
}

// HandlingFailure describes an error raised by a subscriber's handling logic.
// It is what error handlers receive.
type HandlingFailure struct {
	// EventType is the fully qualified event type name.
	EventType string
	// SubscriberID identifies the subscription whose handler failed.
	SubscriberID string
	// Err is the error returned by the handler, or a *PanicError.
	Err error
	// Payload is a human-readable rendering of the payload.
	// It is "no payload" for events without one.
	Payload string
	// EmitTime is when the envelope was emitted.
	EmitTime time.Time
}

// Error implements the error interface.
func (e *HandlingFailure) Error() string {
	return fmt.Sprintf("event %s: subscriber %s: %v (payload: %s)", e.EventType, e.SubscriberID, e.Err, e.Payload)
}

// Unwrap returns the handler's error.
func (e *HandlingFailure) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a handler or an error handler.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

func shapeString(types []reflect.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
