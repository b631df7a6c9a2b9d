package winder_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/eventwinder/pkg/winder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	e := newTestEngine(t)

	typ, err := e.Register(winder.Scope("User", "Connected"), winder.WithPayload(stringT, intT))
	require.NoError(t, err)
	assert.Equal(t, "User::Connected", typ.Name())
	assert.Equal(t, 2, typ.Arity())

	got, ok := e.Lookup("User::Connected")
	require.True(t, ok)
	assert.Same(t, typ, got)

	_, ok = e.Lookup("User::Disconnected")
	assert.False(t, ok)

	assert.Equal(t, []string{"User::Connected", winder.EmittedType, winder.HandledType}, e.Types())
}

func TestRegister_Duplicate(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Ping")

	_, err := e.Register("Ping")
	var regErr *winder.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "Ping", regErr.Name)
	assert.ErrorIs(t, err, winder.ErrDuplicateType)

	_, err = e.Register(winder.EmittedType)
	assert.ErrorIs(t, err, winder.ErrDuplicateType, "monitoring names are taken")

	assert.Panics(t, func() { e.MustRegister("Ping") })
}

func TestRegister_ClosedByTraffic(t *testing.T) {
	t.Run("after emit", func(t *testing.T) {
		e := newTestEngine(t)
		e.MustRegister("Ping")
		require.NoError(t, e.Emit(context.Background(), "Ping"))

		_, err := e.Register("Late")
		assert.ErrorIs(t, err, winder.ErrRegistrationClosed)
	})

	t.Run("after subscribe", func(t *testing.T) {
		e := newTestEngine(t)
		e.MustRegister("Ping")
		e.MustSubscribe("Ping", func() {})

		_, err := e.Register("Late")
		assert.ErrorIs(t, err, winder.ErrRegistrationClosed)
	})

	t.Run("rejected subscribe does not close", func(t *testing.T) {
		e := newTestEngine(t)
		e.MustRegister("Ping")
		_, err := e.Subscribe("Ping", func(string) {})
		require.Error(t, err)

		_, err = e.Register("Pong")
		assert.NoError(t, err)
	})
}

func TestSubscribe_Errors(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Msg", winder.WithPayload(stringT))

	t.Run("unknown type", func(t *testing.T) {
		_, err := e.Subscribe("Nope", func() {})
		assert.ErrorIs(t, err, winder.ErrUnknownType)
	})

	t.Run("zero-argument handler for Msg", func(t *testing.T) {
		_, err := e.Subscribe("Msg", func() {})

		var arityErr *winder.ArityMismatchError
		require.ErrorAs(t, err, &arityErr)
		assert.Equal(t, "Msg", arityErr.EventType)
		assert.Equal(t, 1, arityErr.Want)
		assert.Equal(t, 0, arityErr.Got)
	})

	t.Run("wrong parameter type", func(t *testing.T) {
		_, err := e.Subscribe("Msg", func(int) {})

		var shapeErr *winder.ShapeMismatchError
		assert.ErrorAs(t, err, &shapeErr)
	})

	t.Run("not a function", func(t *testing.T) {
		_, err := e.Subscribe("Msg", 42)
		assert.ErrorIs(t, err, winder.ErrInvalidHandler)
	})

	t.Run("must subscribe panics", func(t *testing.T) {
		assert.Panics(t, func() { e.MustSubscribe("Msg", func() {}) })
	})

	assert.Equal(t, 0, e.Subscribers("Msg"))
}

func TestSubscription_Accessors(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Ping")

	anon := e.MustSubscribe("Ping", func() {})
	assert.True(t, strings.HasPrefix(anon.ID(), "sub-"))
	assert.Equal(t, anon.ID(), anon.Name())
	assert.Equal(t, "Ping", anon.EventType())
	assert.NoError(t, anon.Err())

	named := e.MustSubscribe("Ping", func() {}, winder.WithSubscriberName("audit"))
	assert.Equal(t, "audit", named.Name())
	assert.NotEqual(t, anon.ID(), named.ID())

	assert.Equal(t, 2, e.Subscribers("Ping"))
	assert.Equal(t, 0, e.Subscribers("Nope"))
}

func TestEmit_Errors(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Msg", winder.WithPayload(stringT))

	got := newRecorder[string]()
	e.MustSubscribe("Msg", func(s string) { got.add(s) })

	t.Run("unknown type", func(t *testing.T) {
		err := e.Emit(context.Background(), "Nope")

		var shapeErr *winder.ShapeMismatchError
		require.ErrorAs(t, err, &shapeErr)
		assert.ErrorIs(t, err, winder.ErrUnknownType)
		assert.Equal(t, "Nope", shapeErr.EventType)
	})

	t.Run("wrong arity", func(t *testing.T) {
		err := e.Emit(context.Background(), "Msg")

		var shapeErr *winder.ShapeMismatchError
		require.ErrorAs(t, err, &shapeErr)
		assert.Equal(t, -1, shapeErr.Index)
	})

	t.Run("wrong type", func(t *testing.T) {
		err := e.Emit(context.Background(), "Msg", 42)

		var shapeErr *winder.ShapeMismatchError
		require.ErrorAs(t, err, &shapeErr)
		assert.Equal(t, 0, shapeErr.Index)
	})

	// only the valid emit is delivered
	require.NoError(t, e.Emit(context.Background(), "Msg", "ok"))
	assert.Equal(t, []string{"ok"}, got.waitFor(t, 1))
}

func TestEmit_NoSubscribers(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Ping")

	handled := newRecorder[winder.Handled]()
	e.MustSubscribe(winder.HandledType, winder.OnHandled(func(_ context.Context, h winder.Handled) {
		handled.add(h)
	}))
	emitted := newRecorder[winder.Emitted]()
	e.MustSubscribe(winder.EmittedType, winder.OnEmitted(func(_ context.Context, rec winder.Emitted) {
		emitted.add(rec)
	}))

	require.NoError(t, e.Emit(context.Background(), "Ping"))

	recs := emitted.waitFor(t, 1)
	assert.Equal(t, 0, recs[0].Subscribers)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, handled.snapshot())
}

func TestOrdering_SlowHandlerKeepsOrder(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Seq", winder.WithPayload(intT))

	got := newRecorder[int]()
	e.MustSubscribe("Seq", func(n int) {
		// uneven handling time
		time.Sleep(time.Duration(n%3) * time.Millisecond)
		got.add(n)
	})

	const n = 50
	for i := range n {
		require.NoError(t, e.Emit(context.Background(), "Seq", i))
	}

	values := got.waitFor(t, n)
	for i, v := range values {
		assert.Equal(t, i, v)
	}
}

func TestPingScenario(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Ping")

	out := newRecorder[string]()
	e.MustSubscribe("Ping", func() {
		time.Sleep(30 * time.Millisecond)
		out.add("slow")
	})
	e.MustSubscribe("Ping", func() {
		out.add("fast")
	})

	ctx := context.Background()
	for range 3 {
		require.NoError(t, e.Emit(ctx, "Ping"))
	}

	assert.Equal(t, []string{"fast", "fast", "fast", "slow", "slow", "slow"}, out.waitFor(t, 6))
}

func TestFanOut_IndependentCopies(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Seq", winder.WithPayload(intT))

	a, b := newRecorder[int](), newRecorder[int]()
	e.MustSubscribe("Seq", func(n int) { a.add(n) })
	e.MustSubscribe("Seq", func(n int) { b.add(n) })

	const n = 100
	for i := range n {
		require.NoError(t, e.Emit(context.Background(), "Seq", i))
	}

	assert.Equal(t, a.waitFor(t, n), b.waitFor(t, n))
	assert.Len(t, a.snapshot(), n)
}

func TestCrashIsolation(t *testing.T) {
	metrics := newCountingMetrics()
	e := newTestEngine(t, winder.WithMetrics(metrics))
	e.MustRegister("Msg", winder.WithPayload(stringT))

	boom := errors.New("cannot handle")
	crashing := e.MustSubscribe("Msg", func(string) error { return boom })

	survivor := newRecorder[string]()
	e.MustSubscribe("Msg", func(s string) { survivor.add(s) })

	ctx := context.Background()
	require.NoError(t, e.Emit(ctx, "Msg", "hello"))
	waitDone(t, crashing)

	var failure *winder.HandlingFailure
	require.ErrorAs(t, crashing.Err(), &failure)
	assert.ErrorIs(t, failure, boom)
	assert.Equal(t, `"hello"`, failure.Payload)
	assert.Equal(t, crashing.ID(), failure.SubscriberID)

	assert.Equal(t, 1, e.Subscribers("Msg"), "crashed subscriber left the fan-out")

	require.NoError(t, e.Emit(ctx, "Msg", "again"))
	require.NoError(t, e.Emit(ctx, "Msg", "and again"))
	assert.Equal(t, []string{"hello", "again", "and again"}, survivor.waitFor(t, 3))

	_, terminated := metrics.counts("Msg")
	assert.Equal(t, 1, terminated)
}

func TestPanicTerminatesSubscriber(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Ping")

	sub := e.MustSubscribe("Ping", func() { panic("kaboom") })
	require.NoError(t, e.Emit(context.Background(), "Ping"))
	waitDone(t, sub)

	var panicErr *winder.PanicError
	require.ErrorAs(t, sub.Err(), &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)

	var failure *winder.HandlingFailure
	require.ErrorAs(t, sub.Err(), &failure)
	assert.Equal(t, "no payload", failure.Payload)
}

func TestTerminationDiscardsQueue(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Seq", winder.WithPayload(intT))

	release := make(chan struct{})
	calls := newRecorder[int]()
	sub := e.MustSubscribe("Seq", func(n int) error {
		<-release
		calls.add(n)
		return fmt.Errorf("failed on %d", n)
	})

	ctx := context.Background()
	for i := range 3 {
		require.NoError(t, e.Emit(ctx, "Seq", i))
	}
	close(release)
	waitDone(t, sub)

	assert.Equal(t, []int{0}, calls.snapshot())
	assert.Equal(t, 0, sub.Pending())
	assert.ErrorContains(t, sub.Err(), "failed on 0")
}

func TestEmit_DoesNotWait(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Ping")

	release := make(chan struct{})
	defer close(release)
	for range 3 {
		e.MustSubscribe("Ping", func() { <-release })
	}

	returned := make(chan error, 1)
	go func() {
		for range 10 {
			if err := e.Emit(context.Background(), "Ping"); err != nil {
				returned <- err
				return
			}
		}
		returned <- nil
	}()

	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Emit waited for handlers")
	}
}

func TestEmit_CopiesPayload(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Msg", winder.WithPayload(stringT))

	release := make(chan struct{})
	got := newRecorder[string]()
	e.MustSubscribe("Msg", func(s string) {
		<-release
		got.add(s)
	})

	args := []any{"original"}
	require.NoError(t, e.Emit(context.Background(), "Msg", args...))
	args[0] = "mutated"
	close(release)

	assert.Equal(t, []string{"original"}, got.waitFor(t, 1))
}

func TestEmit_SubscribersGetPrivateCopies(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Batch", winder.WithPayload(reflect.TypeFor[[]int]()))

	mutated := make(chan struct{})
	e.MustSubscribe("Batch", func(xs []int) {
		xs[0] = 999
		close(mutated)
	})
	seen := newRecorder[int]()
	e.MustSubscribe("Batch", func(xs []int) {
		<-mutated
		seen.add(xs[0])
	})

	batch := []int{1}
	require.NoError(t, e.Emit(context.Background(), "Batch", batch))

	assert.Equal(t, []int{1}, seen.waitFor(t, 1), "second subscriber sees the emitted value")
	assert.Equal(t, []int{1}, batch, "producer slice is untouched")
}

func TestEmit_ProducerMutationAfterEmit(t *testing.T) {
	e := newTestEngine(t)
	e.MustRegister("Tags", winder.WithPayload(reflect.TypeFor[map[string]int]()))

	release := make(chan struct{})
	got := newRecorder[int]()
	e.MustSubscribe("Tags", func(m map[string]int) {
		<-release
		got.add(m["a"])
	})

	tags := map[string]int{"a": 1}
	require.NoError(t, e.Emit(context.Background(), "Tags", tags))
	tags["a"] = 2
	close(release)

	assert.Equal(t, []int{1}, got.waitFor(t, 1))
}

func TestHandlerReceivesBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "base")
	e := newTestEngine(t, winder.WithBaseContext(base))
	e.MustRegister("Ping")

	got := newRecorder[any]()
	e.MustSubscribe("Ping", func(ctx context.Context) { got.add(ctx.Value(key{})) })
	require.NoError(t, e.Emit(context.Background(), "Ping"))

	assert.Equal(t, []any{"base"}, got.waitFor(t, 1))
}

func TestClose(t *testing.T) {
	t.Run("drains queued envelopes", func(t *testing.T) {
		e := winder.New(winder.WithLogger(nil))
		e.MustRegister("Seq", winder.WithPayload(intT))

		got := newRecorder[int]()
		sub := e.MustSubscribe("Seq", func(n int) {
			time.Sleep(time.Millisecond)
			got.add(n)
		})
		for i := range 10 {
			require.NoError(t, e.Emit(context.Background(), "Seq", i))
		}

		require.NoError(t, e.Close(context.Background()))
		assert.Len(t, got.snapshot(), 10)
		waitDone(t, sub)
		assert.NoError(t, sub.Err())
	})

	t.Run("monitoring sees shutdown drain", func(t *testing.T) {
		e := winder.New(winder.WithLogger(nil))
		e.MustRegister("Seq", winder.WithPayload(intT))

		handled := newRecorder[bool]()
		e.MustSubscribe(winder.HandledType, winder.OnHandled(func(_ context.Context, h winder.Handled) {
			handled.add(h.Success)
		}))
		e.MustSubscribe("Seq", func(int) { time.Sleep(time.Millisecond) })
		for i := range 5 {
			require.NoError(t, e.Emit(context.Background(), "Seq", i))
		}

		require.NoError(t, e.Close(context.Background()))
		assert.Len(t, handled.snapshot(), 5)
	})

	t.Run("rejects traffic afterwards", func(t *testing.T) {
		e := winder.New(winder.WithLogger(nil))
		e.MustRegister("Ping")
		require.NoError(t, e.Close(context.Background()))
		require.NoError(t, e.Close(context.Background()), "Close is idempotent")

		assert.ErrorIs(t, e.Emit(context.Background(), "Ping"), winder.ErrEngineClosed)
		_, err := e.Subscribe("Ping", func() {})
		assert.ErrorIs(t, err, winder.ErrEngineClosed)
	})

	t.Run("respects context", func(t *testing.T) {
		e := winder.New(winder.WithLogger(nil))
		e.MustRegister("Ping")

		release := make(chan struct{})
		defer close(release)
		e.MustSubscribe("Ping", func() { <-release })
		require.NoError(t, e.Emit(context.Background(), "Ping"))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, e.Close(ctx), context.DeadlineExceeded)
	})
}
