package winder

import (
	"fmt"
	"reflect"
	"strings"
)

// ScopeSeparator joins a scope and an event name into a qualified name.
const ScopeSeparator = "::"

// Scope builds a qualified event type name from enclosing scopes and a name.
//
//	winder.Scope("User", "Connected") // "User::Connected"
func Scope(parts ...string) string {
	return strings.Join(parts, ScopeSeparator)
}

// EventType is the immutable descriptor of a registered event type.
type EventType struct {
	name         string
	payload      []reflect.Type
	errorHandler ErrorHandler
	monitoring   bool
}

// Name returns the fully qualified event type name.
func (t *EventType) Name() string {
	return t.name
}

// Payload returns a copy of the declared payload shape.
func (t *EventType) Payload() []reflect.Type {
	out := make([]reflect.Type, len(t.payload))
	copy(out, t.payload)
	return out
}

// Arity returns the number of declared payload values.
func (t *EventType) Arity() int {
	return len(t.payload)
}

// IsMonitoring reports whether t is one of the built-in monitoring types.
func (t *EventType) IsMonitoring() bool {
	return t.monitoring
}

// String returns the name followed by the payload shape.
func (t *EventType) String() string {
	return t.name + shapeString(t.payload)
}

// checkPayload validates values against the declared shape.
func (t *EventType) checkPayload(values []any) error {
	if len(values) != len(t.payload) {
		return &ShapeMismatchError{
			EventType: t.name,
			Index:     -1,
			Want:      t.payload,
			Got:       valuesShape(values),
		}
	}
	for i, v := range values {
		want := t.payload[i]
		if v == nil {
			if !nilable(want) {
				return &ShapeMismatchError{EventType: t.name, Index: i, Want: t.payload, Got: "nil"}
			}
			continue
		}
		if got := reflect.TypeOf(v); !got.AssignableTo(want) {
			return &ShapeMismatchError{EventType: t.name, Index: i, Want: t.payload, Got: got.String()}
		}
	}
	return nil
}

// TypeOption configures an event type at registration.
type TypeOption func(*EventType)

// WithPayload declares the payload shape of an event type, in order.
// An event type registered without it carries no payload.
//
//	winder.WithPayload(reflect.TypeFor[string](), reflect.TypeFor[int]())
func WithPayload(types ...reflect.Type) TypeOption {
	return func(t *EventType) {
		t.payload = append([]reflect.Type(nil), types...)
	}
}

// WithErrorHandler sets a dedicated error handler for an event type.
// It takes precedence over the engine's default error handler.
func WithErrorHandler(h ErrorHandler) TypeOption {
	return func(t *EventType) {
		t.errorHandler = h
	}
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func valuesShape(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			parts[i] = "nil"
			continue
		}
		parts[i] = reflect.TypeOf(v).String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// renderPayload produces the human-readable payload passed to error handlers.
func renderPayload(values []any) string {
	if len(values) == 0 {
		return "no payload"
	}
	if len(values) == 1 {
		return fmt.Sprintf("%#v", values[0])
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%#v", v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
