package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(log *[]string, name string) Hooks {
	rec := func(phase string) Hook {
		return func(context.Context) *Promise {
			*log = append(*log, name+"."+phase)
			return nil
		}
	}

	return Hooks{
		Binding:   rec("binding"),
		Bound:     rec("bound"),
		Attaching: rec("attaching"),
		Attached:  rec("attached"),
		Detaching: rec("detaching"),
		Unbinding: rec("unbinding"),
	}
}

func TestController(t *testing.T) {
	ctx := context.Background()

	t.Run("activates and deactivates a tree in order", func(t *testing.T) {
		log := []string{}

		parent := New("p", recorder(&log, "p"))
		parent.AddChild(New("c1", recorder(&log, "c1")))
		parent.AddChild(New("c2", recorder(&log, "c2")))

		activation := parent.Activate(ctx)
		require.True(t, activation.Settled())
		require.NoError(t, activation.Err())
		assert.Equal(t, StateActive, parent.State())

		log = append(log, "--")

		deactivation := parent.Deactivate(ctx)
		require.True(t, deactivation.Settled())
		require.NoError(t, deactivation.Err())
		assert.Equal(t, StateDeactivated, parent.State())

		g := goldie.New(t,
			goldie.WithFixtureDir("testdata/golden"),
			goldie.WithNameSuffix(".golden"),
		)
		g.Assert(t, "tree_lifecycle", []byte(strings.Join(log, "\n")+"\n"))
	})

	t.Run("deactivation while binding is pending skips the remaining phases", func(t *testing.T) {
		log := []string{}

		pending := NewPromise()
		hooks := recorder(&log, "x")
		hooks.Binding = func(context.Context) *Promise {
			log = append(log, "x.binding")
			return pending
		}

		x := New("x", hooks)

		activation := x.Activate(ctx)
		assert.False(t, activation.Settled())

		deactivation := x.Deactivate(ctx)
		require.True(t, deactivation.Settled())
		require.NoError(t, deactivation.Err())

		pending.Resolve(nil)

		assert.Equal(t, []string{"x.binding"}, log)
		require.True(t, activation.Settled())
		assert.ErrorIs(t, activation.Err(), ErrDeactivated)
		assert.Equal(t, StateDeactivated, x.State())
	})

	t.Run("hook context is cancelled by deactivation", func(t *testing.T) {
		var hookCtx context.Context

		x := New("x", Hooks{
			Binding: func(ctx context.Context) *Promise {
				hookCtx = ctx
				return NewPromise()
			},
		})

		x.Activate(ctx)
		require.NotNil(t, hookCtx)
		assert.NoError(t, hookCtx.Err())

		x.Deactivate(ctx)
		assert.ErrorIs(t, hookCtx.Err(), context.Canceled)
	})

	t.Run("waits for asynchronous hooks", func(t *testing.T) {
		log := []string{}

		hooks := recorder(&log, "x")
		hooks.Bound = func(context.Context) *Promise {
			p := NewPromise()
			go func() {
				time.Sleep(5 * time.Millisecond)
				p.Resolve(nil)
			}()
			return p
		}

		x := New("x", hooks)

		_, err := x.Activate(ctx).Wait(ctx)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"x.binding",
			"x.attaching",
			"x.attached",
		}, log)
		assert.Equal(t, StateActive, x.State())
	})

	t.Run("hook failure rejects the activation", func(t *testing.T) {
		log := []string{}
		boom := errors.New("boom")

		hooks := recorder(&log, "x")
		hooks.Attaching = func(context.Context) *Promise {
			log = append(log, "x.attaching")
			return Rejected(boom)
		}

		x := New("x", hooks)

		activation := x.Activate(ctx)
		require.True(t, activation.Settled())
		assert.ErrorIs(t, activation.Err(), boom)

		var hookErr *HookError
		require.ErrorAs(t, activation.Err(), &hookErr)
		assert.Equal(t, "x", hookErr.Controller)
		assert.Equal(t, PhaseAttaching, hookErr.Phase)
		assert.Equal(t, StateFailed, x.State())

		assert.ErrorIs(t, x.Activate(ctx).Err(), ErrInvalidState)

		x.Deactivate(ctx)

		assert.Equal(t, []string{
			"x.binding",
			"x.bound",
			"x.attaching",
			"x.unbinding",
		}, log)
	})

	t.Run("recovers hook panics", func(t *testing.T) {
		caught := []any{}

		x := New("x", Hooks{
			Bound: func(context.Context) *Promise {
				panic("bad bound")
			},
		})
		x.OnError(func(r any) {
			caught = append(caught, r)
		})

		activation := x.Activate(ctx)
		require.True(t, activation.Settled())
		assert.ErrorContains(t, activation.Err(), "panic: bad bound")
		assert.Equal(t, []any{"bad bound"}, caught)
	})

	t.Run("teardown failures are joined", func(t *testing.T) {
		first := errors.New("first")
		second := errors.New("second")

		x := New("x", Hooks{
			Detaching: func(context.Context) *Promise { return Rejected(first) },
			Unbinding: func(context.Context) *Promise { return Rejected(second) },
		})

		require.NoError(t, x.Activate(ctx).Err())

		err := x.Deactivate(ctx).Err()
		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, second)
		assert.Equal(t, StateDeactivated, x.State())
	})

	t.Run("reactivates after deactivation", func(t *testing.T) {
		log := []string{}

		x := New("x", Hooks{
			Binding: func(context.Context) *Promise {
				log = append(log, "binding")
				return nil
			},
		})

		x.Activate(ctx)
		x.Deactivate(ctx)
		x.Activate(ctx)

		assert.Equal(t, []string{"binding", "binding"}, log)
		assert.Equal(t, StateActive, x.State())
	})

	t.Run("dispose runs cleanups children first", func(t *testing.T) {
		log := []string{}

		parent := New("p", Hooks{
			Binding: func(context.Context) *Promise { return NewPromise() },
		})
		parent.OnDispose(func() { log = append(log, "parent disposed") })

		child := New("c", Hooks{})
		child.OnDispose(func() { log = append(log, "child disposed") })
		parent.AddChild(child)

		activation := parent.Activate(ctx)
		parent.Dispose()
		parent.Dispose()

		assert.Equal(t, []string{
			"child disposed",
			"parent disposed",
		}, log)
		assert.ErrorIs(t, activation.Err(), ErrDisposed)
		assert.ErrorIs(t, parent.Activate(ctx).Err(), ErrDisposed)
		assert.Equal(t, StateDisposed, child.State())
	})

	t.Run("children keep insertion order", func(t *testing.T) {
		parent := New("p", Hooks{})
		a := New("a", Hooks{})
		b := New("b", Hooks{})
		parent.AddChild(a)
		parent.AddChild(b)

		names := []string{}
		for child := range parent.Children() {
			names = append(names, child.Name())
			assert.Same(t, parent, child.Parent())
		}

		assert.Equal(t, []string{"a", "b"}, names)
		assert.NotEqual(t, a.ID(), b.ID())
	})
}

func TestPromise(t *testing.T) {
	t.Run("settles once", func(t *testing.T) {
		p := NewPromise()

		assert.True(t, p.Resolve(1))
		assert.False(t, p.Resolve(2))
		assert.False(t, p.Reject(errors.New("late")))

		assert.Equal(t, 1, p.Value())
		assert.NoError(t, p.Err())
	})

	t.Run("then runs continuations in order", func(t *testing.T) {
		log := []string{}
		p := NewPromise()

		p.Then(func(v any, _ error) { log = append(log, "first "+v.(string)) })
		p.Then(func(v any, _ error) { log = append(log, "second "+v.(string)) })
		log = append(log, "resolving")
		p.Resolve("v")
		p.Then(func(v any, _ error) { log = append(log, "late "+v.(string)) })

		assert.Equal(t, []string{
			"resolving",
			"first v",
			"second v",
			"late v",
		}, log)
	})

	t.Run("all joins rejections", func(t *testing.T) {
		a, b := errors.New("a"), errors.New("b")
		pending := NewPromise()

		all := All(Rejected(a), Resolved(nil), pending, Rejected(b))
		assert.False(t, all.Settled())

		pending.Resolve(nil)
		require.True(t, all.Settled())
		assert.ErrorIs(t, all.Err(), a)
		assert.ErrorIs(t, all.Err(), b)

		assert.NoError(t, All().Err())
	})

	t.Run("wait honors the context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewPromise().Wait(ctx)
		assert.ErrorIs(t, err, context.Canceled)

		v, err := Resolved(3).Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})
}
