package bind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/AnatoleLucet/bind/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string
}

type person struct {
	Name    string
	Address *address
}

func TestProperty(t *testing.T) {
	t.Run("notifies subscribers", func(t *testing.T) {
		log := []string{}
		p := NewValue(1)

		p.OnChange(func(value, previous int) error {
			log = append(log, fmt.Sprintf("%d -> %d", previous, value))
			return nil
		})

		require.NoError(t, p.Set(2))
		require.NoError(t, p.Update(func(v int) int { return v * 10 }))

		assert.Equal(t, []string{"1 -> 2", "2 -> 20"}, log)
		assert.Equal(t, 20, p.Peek())
	})

	t.Run("same handler subscribed twice notifies once", func(t *testing.T) {
		calls := 0
		p := NewValue("a")
		h := OnChange(func(_, _ string) error {
			calls++
			return nil
		})

		assert.True(t, p.Subscribe(h))
		assert.False(t, p.Subscribe(h))
		require.NoError(t, p.Set("b"))

		assert.Equal(t, 1, calls)
	})

	t.Run("setting the current value does not notify", func(t *testing.T) {
		calls := 0
		p := NewValue(3)
		p.OnChange(func(_, _ int) error {
			calls++
			return nil
		})

		require.NoError(t, p.Set(3))
		assert.Equal(t, 0, calls)
	})

	t.Run("unsubscribe stops notifications", func(t *testing.T) {
		calls := 0
		p := NewValue(0)
		off := p.OnChange(func(_, _ int) error {
			calls++
			return nil
		})

		require.NoError(t, p.Set(1))
		off()
		require.NoError(t, p.Set(2))

		assert.Equal(t, 1, calls)
	})

	t.Run("subscriber failures are returned joined", func(t *testing.T) {
		boom := errors.New("boom")
		later := false
		p := NewValue(0)

		p.OnChange(func(_, _ int) error { return boom })
		p.OnChange(func(_, _ int) error { panic("bad") })
		p.OnChange(func(_, _ int) error {
			later = true
			return nil
		})

		err := p.Set(1)
		assert.ErrorIs(t, err, boom)

		var panicErr *PanicError
		assert.ErrorAs(t, err, &panicErr)
		assert.True(t, later)
		assert.Equal(t, 1, p.Peek())
	})

	t.Run("batch notifies once at the end", func(t *testing.T) {
		log := []string{}
		p := NewValue(0)
		p.OnChange(func(value, previous int) error {
			log = append(log, fmt.Sprintf("%d -> %d", previous, value))
			return nil
		})

		require.NoError(t, Batch(func() {
			p.Set(1)
			p.Set(2)
			log = append(log, "in batch")
		}))

		assert.Equal(t, []string{"in batch", "0 -> 2"}, log)
	})

	t.Run("observes struct fields through a locator", func(t *testing.T) {
		loc := NewLocator()
		ada := &person{Name: "ada"}

		name, err := Observe[string](loc, ada, "Name")
		require.NoError(t, err)
		assert.Equal(t, "ada", name.Get())

		require.NoError(t, name.Set("grace"))
		assert.Equal(t, "grace", ada.Name)

		_, err = Observe[string](loc, ada, "Missing")
		assert.ErrorIs(t, err, ErrNoSuchProperty)
	})
}

func TestComputed(t *testing.T) {
	t.Run("is lazy and cached", func(t *testing.T) {
		evals := 0
		a := NewValue(2)
		double := NewComputed(func() int {
			evals++
			return a.Get() * 2
		})

		assert.Equal(t, 0, evals)
		assert.Equal(t, 4, double.Get())
		assert.Equal(t, 4, double.Get())
		assert.Equal(t, 1, evals)

		require.NoError(t, a.Set(5))
		assert.Equal(t, 10, double.Peek())
		assert.Equal(t, 2, evals)
	})

	t.Run("tracks dependencies dynamically", func(t *testing.T) {
		log := []string{}
		flag := NewValue(false)
		a := NewValue("a1")
		b := NewValue("b1")

		c := NewComputed(func() string {
			log = append(log, "eval")
			if flag.Get() {
				return a.Get()
			}
			return b.Get()
		})
		c.OnChange(func(value, _ string) error {
			log = append(log, "changed "+value)
			return nil
		})

		require.NoError(t, a.Set("a2"))
		require.NoError(t, flag.Set(true))
		require.NoError(t, b.Set("b2"))
		require.NoError(t, a.Set("a3"))

		assert.Equal(t, []string{
			"eval",
			"eval",
			"changed a2",
			"eval",
			"changed a3",
		}, log)
	})

	t.Run("lets go of its sources when nothing observes it", func(t *testing.T) {
		a := NewValue(1)
		double := NewComputed(func() int { return a.Get() * 2 })

		stop := double.OnChange(func(_, _ int) error { return nil })
		assert.Equal(t, 1, double.computed.Dependencies())
		assert.Equal(t, 1, a.observer.(*internal.PropertyObserver).Subscribers())

		stop()
		assert.Equal(t, 0, double.computed.Dependencies())
		assert.Equal(t, 0, a.observer.(*internal.PropertyObserver).Subscribers())
		assert.Equal(t, 2, double.Get())
	})

	t.Run("setter makes it writable", func(t *testing.T) {
		celsius := NewValue(0.0)
		fahrenheit := NewComputed(
			func() float64 { return celsius.Get()*9/5 + 32 },
			WithSetter(func(f float64) error { return celsius.Set((f - 32) * 5 / 9) }),
		)

		require.NoError(t, fahrenheit.Set(212))
		assert.Equal(t, 100.0, celsius.Peek())
		assert.Equal(t, 212.0, fahrenheit.Get())

		readOnly := NewComputed(func() int { return 1 })
		assert.ErrorIs(t, readOnly.Set(2), ErrReadOnly)
	})
}

func TestEffect(t *testing.T) {
	t.Run("re-runs on changes", func(t *testing.T) {
		log := []string{}
		count := NewValue(0)

		e, err := RunEffect(func(*Effect) {
			log = append(log, fmt.Sprint("count=", count.Get()))
		})
		require.NoError(t, err)

		require.NoError(t, count.Set(1))
		e.Stop()
		require.NoError(t, count.Set(2))

		assert.Equal(t, []string{"count=0", "count=1"}, log)
		assert.Equal(t, 2, e.Runs())
	})

	t.Run("does not re-run for branches it stopped reading", func(t *testing.T) {
		runs := 0
		flag := NewValue(true)
		a := NewValue(0)

		_, err := RunEffect(func(*Effect) {
			runs++
			if flag.Get() {
				a.Get()
			}
		})
		require.NoError(t, err)

		require.NoError(t, flag.Set(false))
		require.NoError(t, a.Set(1))
		assert.Equal(t, 2, runs)

		require.NoError(t, flag.Set(true))
		require.NoError(t, a.Set(2))
		assert.Equal(t, 4, runs)
	})

	t.Run("reads derived values after they settle", func(t *testing.T) {
		log := []string{}
		a := NewValue(0)
		c := NewComputed(func() int { return a.Get() * 2 })

		e, err := RunEffect(func(*Effect) {
			log = append(log, fmt.Sprint("a=", a.Get()), fmt.Sprint("c=", c.Get()))
		})
		require.NoError(t, err)

		require.NoError(t, a.Set(1))

		assert.Equal(t, []string{"a=0", "c=0", "a=1", "c=2"}, log)
		assert.Equal(t, 2, e.Runs())
	})

	t.Run("runs cleanups before re-running and on stop", func(t *testing.T) {
		log := []string{}
		count := NewValue(0)

		e, err := RunEffect(func(*Effect) {
			n := count.Get()
			log = append(log, fmt.Sprint("run ", n))
			OnCleanup(func() {
				log = append(log, fmt.Sprint("cleanup ", n))
			})
		})
		require.NoError(t, err)

		require.NoError(t, count.Set(1))
		e.Stop()

		assert.Equal(t, []string{"run 0", "cleanup 0", "run 1", "cleanup 1"}, log)
		assert.False(t, OnCleanup(func() {}))
	})

	t.Run("stops a runaway effect at the recursion limit", func(t *testing.T) {
		count := NewValue(0)

		e, err := RunEffect(func(*Effect) {
			count.Set(count.Get() + 1)
		})

		require.ErrorIs(t, err, ErrRecursionLimit)

		var recErr *RecursionError
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, DefaultRecursionLimit, recErr.Limit)
		assert.Equal(t, DefaultRecursionLimit, e.Runs())
		assert.Equal(t, DefaultRecursionLimit, count.Peek())
	})

	t.Run("untrack reads without subscribing", func(t *testing.T) {
		runs := 0
		a := NewValue(0)

		_, err := RunEffect(func(*Effect) {
			runs++
			Untrack(a.Get)
		})
		require.NoError(t, err)

		require.NoError(t, a.Set(1))
		assert.Equal(t, 1, runs)
	})
}

func TestWatch(t *testing.T) {
	t.Run("calls back with new and previous results", func(t *testing.T) {
		log := []string{}
		first := NewValue("ada")
		last := NewValue("lovelace")

		w, err := Watch(
			func() string { return first.Get() + " " + last.Get() },
			func(value, previous string) error {
				log = append(log, previous+" => "+value)
				return nil
			},
		)
		require.NoError(t, err)
		assert.Equal(t, "ada lovelace", w.Value())

		require.NoError(t, first.Set("grace"))
		require.NoError(t, last.Set("hopper"))
		w.Stop()
		require.NoError(t, last.Set("x"))

		assert.Equal(t, []string{
			"ada lovelace => grace lovelace",
			"grace lovelace => grace hopper",
		}, log)
	})

	t.Run("compares slices shallowly", func(t *testing.T) {
		calls := 0
		a := NewValue(1)

		_, err := Watch(
			func() []int { return []int{a.Get() % 2} },
			func(_, _ []int) error {
				calls++
				return nil
			},
		)
		require.NoError(t, err)

		require.NoError(t, a.Set(3))
		assert.Equal(t, 0, calls)

		require.NoError(t, a.Set(4))
		assert.Equal(t, 1, calls)
	})

	t.Run("watches a path of keys", func(t *testing.T) {
		log := []any{}
		loc := NewLocator()
		p := &person{Address: &address{City: "Paris"}}

		_, err := WatchPath(loc, p, "Address.City", func(value, _ any) error {
			log = append(log, value)
			return nil
		})
		require.NoError(t, err)

		city, err := loc.GetObserver(p.Address, "City")
		require.NoError(t, err)
		require.NoError(t, city.SetValue("Lyon"))

		addr, err := loc.GetObserver(p, "Address")
		require.NoError(t, err)
		require.NoError(t, addr.SetValue(&address{City: "Rome"}))
		require.NoError(t, addr.SetValue((*address)(nil)))

		assert.Equal(t, []any{"Lyon", "Rome", nil}, log)
	})

	t.Run("path errors are reported up front", func(t *testing.T) {
		loc := NewLocator()

		w, err := WatchPath(loc, &person{}, "Nope.City", func(_, _ any) error { return nil })
		assert.Nil(t, w)
		assert.ErrorIs(t, err, ErrNoSuchProperty)
	})
}
