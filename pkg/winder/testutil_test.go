package winder_test

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/eventwinder/pkg/winder"
)

var (
	stringT = reflect.TypeFor[string]()
	intT    = reflect.TypeFor[int]()
)

// newTestEngine returns a silent engine that is closed when the test ends.
func newTestEngine(t *testing.T, opts ...winder.Option) *winder.Engine {
	t.Helper()
	e := winder.New(append([]winder.Option{winder.WithLogger(nil)}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.Close(ctx)
	})
	return e
}

// recorder collects values from handler goroutines.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
	notify chan struct{}
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{notify: make(chan struct{}, 1)}
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

// waitFor blocks until at least n values were recorded.
func (r *recorder[T]) waitFor(t *testing.T, n int) []T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d values, got %d", n, len(r.snapshot()))
		}
	}
}

// waitDone blocks until the subscription has stopped.
func waitDone(t *testing.T, s *winder.Subscription) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("subscription %s did not stop", s.ID())
	}
}

// countingMetrics counts drop and termination records.
type countingMetrics struct {
	mu         sync.Mutex
	dropped    map[string]int
	terminated map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{dropped: map[string]int{}, terminated: map[string]int{}}
}

func (m *countingMetrics) RecordEmitted(context.Context, string, int)                                {}
func (m *countingMetrics) RecordHandled(context.Context, string, time.Duration, time.Duration, bool) {}

func (m *countingMetrics) RecordDropped(_ context.Context, eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[eventType]++
}

func (m *countingMetrics) RecordTerminated(_ context.Context, eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminated[eventType]++
}

func (m *countingMetrics) counts(eventType string) (dropped, terminated int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[eventType], m.terminated[eventType]
}
