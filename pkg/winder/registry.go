package winder

import (
	"sort"
	"sync"
	"sync/atomic"
)

// registry holds the event types of one engine and their subscriber lists.
//
// Types are added only before traffic starts; the first Emit or Subscribe
// seals it. Subscriber lists are copy-on-write so Emit reads them without
// taking the lock.
type registry struct {
	mu     sync.RWMutex
	types  map[string]*entry
	sealed atomic.Bool
}

type entry struct {
	typ  *EventType
	subs atomic.Pointer[[]*Subscription]
}

func newRegistry() *registry {
	return &registry{
		types: make(map[string]*entry),
	}
}

func (r *registry) register(t *EventType) error {
	if t.name == "" {
		return &RegistrationError{Reason: "event type name is required"}
	}
	for _, p := range t.payload {
		if p == nil {
			return &RegistrationError{Name: t.name, Reason: "payload type cannot be nil"}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return &RegistrationError{Name: t.name, Err: ErrRegistrationClosed}
	}
	if _, ok := r.types[t.name]; ok {
		return &RegistrationError{Name: t.name, Err: ErrDuplicateType}
	}

	e := &entry{typ: t}
	e.subs.Store(&[]*Subscription{})
	r.types[t.name] = e
	return nil
}

// seal ends the registration phase.
func (r *registry) seal() {
	if r.sealed.Load() {
		return
	}
	r.mu.Lock()
	r.sealed.Store(true)
	r.mu.Unlock()
}

func (r *registry) get(name string) (*entry, bool) {
	if r.sealed.Load() {
		// types is immutable once sealed
		e, ok := r.types[name]
		return e, ok
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.types[name]
	return e, ok
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// live returns the current subscriber list. Callers must not modify it.
func (e *entry) live() []*Subscription {
	return *e.subs.Load()
}

func (e *entry) add(s *Subscription) {
	for {
		old := e.subs.Load()
		next := make([]*Subscription, len(*old), len(*old)+1)
		copy(next, *old)
		next = append(next, s)
		if e.subs.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (e *entry) remove(s *Subscription) {
	for {
		old := e.subs.Load()
		next := make([]*Subscription, 0, len(*old))
		for _, sub := range *old {
			if sub != s {
				next = append(next, sub)
			}
		}
		if e.subs.CompareAndSwap(old, &next) {
			return
		}
	}
}
