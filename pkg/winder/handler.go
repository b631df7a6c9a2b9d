package winder

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// handler is a subscriber's handling logic adapted to a payload shape.
//
// Accepted function shapes, where T1..TN match the declared payload:
//
//	func(T1, ..., TN)
//	func(T1, ..., TN) error
//	func(context.Context, T1, ..., TN)
//	func(context.Context, T1, ..., TN) error
type handler struct {
	fn         reflect.Value
	params     []reflect.Type
	takesCtx   bool
	returnsErr bool
}

// adaptHandler checks fn against the shape of t.
func adaptHandler(t *EventType, fn any) (*handler, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: handler is nil", ErrInvalidHandler)
	}
	v := reflect.ValueOf(fn)
	ft := v.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: handler must be a function, got %s", ErrInvalidHandler, ft)
	}
	if ft.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic handlers are not supported", ErrInvalidHandler)
	}

	h := &handler{fn: v}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) != errorType {
			return nil, fmt.Errorf("%w: handler may only return error, got %s", ErrInvalidHandler, ft.Out(0))
		}
		h.returnsErr = true
	default:
		return nil, fmt.Errorf("%w: handler may only return error, got %d results", ErrInvalidHandler, ft.NumOut())
	}

	first := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		h.takesCtx = true
		first = 1
	}

	if got := ft.NumIn() - first; got != t.Arity() {
		return nil, &ArityMismatchError{EventType: t.name, Want: t.Arity(), Got: got}
	}

	h.params = make([]reflect.Type, t.Arity())
	for i := range h.params {
		param := ft.In(first + i)
		if !t.payload[i].AssignableTo(param) {
			return nil, &ShapeMismatchError{
				EventType: t.name,
				Index:     i,
				Want:      t.payload,
				Got:       "handler parameter " + param.String(),
			}
		}
		h.params[i] = param
	}

	return h, nil
}

// call runs the handler with a private copy of one payload. Panics are
// returned as *PanicError.
func (h *handler) call(ctx context.Context, payload []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()

	args := make([]reflect.Value, 0, len(payload)+1)
	if h.takesCtx {
		args = append(args, reflect.ValueOf(&ctx).Elem())
	}
	for i, v := range payload {
		if v == nil {
			args = append(args, reflect.Zero(h.params[i]))
			continue
		}
		// every delivery gets its own copy
		args = append(args, reflect.ValueOf(cloneValue(v)))
	}

	out := h.fn.Call(args)
	if h.returnsErr && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}
