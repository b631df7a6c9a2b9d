package winder

import (
	"reflect"
	"sync"
)

// refTypes caches whether a type holds memory that a copy would share.
var refTypes sync.Map // reflect.Type -> bool

// hasRefs reports whether values of t reach shared memory through pointers,
// slices, maps or interfaces in exported positions. Errors count as
// immutable so that sentinel comparisons keep working.
func hasRefs(t reflect.Type) bool {
	if cached, ok := refTypes.Load(t); ok {
		return cached.(bool)
	}

	var refs bool
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		refs = !t.Implements(errorType)
	case reflect.Array:
		refs = t.Len() > 0 && hasRefs(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if f := t.Field(i); f.IsExported() && hasRefs(f.Type) {
				refs = true
				break
			}
		}
	}

	refTypes.Store(t, refs)
	return refs
}

// clonePayload deep-copies every payload value.
func clonePayload(values []any) []any {
	if len(values) == 0 {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = cloneValue(v)
	}
	return out
}

// cloneValue returns a deep copy of v. Value-only types are returned as is.
//
// Pointers, slices, maps, arrays, interfaces and exported struct fields are
// copied recursively; pointer cycles are preserved. Errors, unexported struct
// fields, channels and functions are shared.
func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if !hasRefs(rv.Type()) {
		return v
	}
	return deepCopy(rv, make(map[visit]reflect.Value)).Interface()
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

func deepCopy(v reflect.Value, seen map[visit]reflect.Value) reflect.Value {
	t := v.Type()
	if !hasRefs(t) {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		key := visit{ptr: v.Pointer(), typ: t}
		if c, ok := seen[key]; ok {
			return c
		}
		c := reflect.New(t.Elem())
		seen[key] = c
		c.Elem().Set(deepCopy(v.Elem(), seen))
		return c

	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		c := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := range v.Len() {
			c.Index(i).Set(deepCopy(v.Index(i), seen))
		}
		return c

	case reflect.Map:
		if v.IsNil() {
			return v
		}
		c := reflect.MakeMapWithSize(t, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			// keys keep their identity
			c.SetMapIndex(iter.Key(), deepCopy(iter.Value(), seen))
		}
		return c

	case reflect.Array:
		c := reflect.New(t).Elem()
		for i := range v.Len() {
			c.Index(i).Set(deepCopy(v.Index(i), seen))
		}
		return c

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		c := reflect.New(t).Elem()
		c.Set(deepCopy(v.Elem(), seen))
		return c

	case reflect.Struct:
		c := reflect.New(t).Elem()
		c.Set(v)
		for i := range t.NumField() {
			if t.Field(i).IsExported() {
				c.Field(i).Set(deepCopy(v.Field(i), seen))
			}
		}
		return c
	}
	return v
}
