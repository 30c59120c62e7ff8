package binding

import (
	"fmt"
	"testing"
	"time"

	"github.com/AnatoleLucet/bind"
	"github.com/AnatoleLucet/bind/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordTarget logs every value written to target.
func recordTarget[T any](log *[]string, target *bind.Property[T]) {
	target.OnChange(func(value, _ T) error {
		*log = append(*log, fmt.Sprint("target=", value))
		return nil
	})
}

func TestBinding(t *testing.T) {
	t.Run("to-view without a queue writes synchronously", func(t *testing.T) {
		source := bind.NewValue("a")
		target := bind.NewValue("")

		b := New(source.Observer(), target.Observer())
		require.NoError(t, b.Bind())
		assert.Equal(t, "a", target.Peek())

		require.NoError(t, source.Set("b"))
		assert.Equal(t, "b", target.Peek())

		require.NoError(t, target.Set("x"))
		assert.Equal(t, "b", source.Peek())
	})

	t.Run("one-time copies once", func(t *testing.T) {
		source := bind.NewValue(1)
		target := bind.NewValue(0)

		b := New(source.Observer(), target.Observer(), WithMode(OneTime))
		require.NoError(t, b.Bind())

		require.NoError(t, source.Set(2))
		assert.Equal(t, 1, target.Peek())
	})

	t.Run("from-view writes the source", func(t *testing.T) {
		source := bind.NewValue("")
		target := bind.NewValue("typed")

		b := New(source.Observer(), target.Observer(), WithMode(FromView))
		require.NoError(t, b.Bind())
		assert.Equal(t, "typed", source.Peek())

		require.NoError(t, target.Set("more"))
		assert.Equal(t, "more", source.Peek())

		require.NoError(t, source.Set("model"))
		assert.Equal(t, "more", target.Peek())
	})

	t.Run("two-way syncs both directions", func(t *testing.T) {
		log := []string{}
		source := bind.NewValue("a")
		target := bind.NewValue("")

		b := New(source.Observer(), target.Observer(), WithMode(TwoWay))
		require.NoError(t, b.Bind())
		recordTarget(&log, target)

		require.NoError(t, source.Set("b"))
		require.NoError(t, target.Set("c"))

		assert.Equal(t, "c", source.Peek())
		assert.Equal(t, []string{"target=b", "target=c"}, log)
	})

	t.Run("queued updates run in the write lane and keep only the latest", func(t *testing.T) {
		log := []string{}
		s := bind.NewScheduler()
		source := bind.NewValue(0)
		target := bind.NewValue(0)
		recordTarget(&log, target)

		b := New(source.Observer(), target.Observer(), WithQueue(s))
		require.NoError(t, b.Bind())
		assert.True(t, b.Pending())

		require.NoError(t, source.Set(1))
		require.NoError(t, source.Set(2))
		s.QueueRead(func() error {
			log = append(log, fmt.Sprint("read target=", target.Peek()))
			return nil
		})
		assert.Equal(t, 0, target.Peek())

		require.NoError(t, s.Flush())

		assert.False(t, b.Pending())
		assert.Equal(t, []string{"read target=0", "target=2"}, log)
	})

	t.Run("debounce delivers only the last value after a quiet period", func(t *testing.T) {
		log := []string{}
		clock := testutils.NewClock()
		s := bind.NewScheduler(bind.WithClock(clock))
		source := bind.NewValue("initial")
		target := bind.NewValue("")

		b := New(source.Observer(), target.Observer(), WithQueue(s), WithDebounce(25*time.Millisecond))
		require.NoError(t, b.Bind())
		clock.Advance(25 * time.Millisecond)
		require.NoError(t, s.Flush())
		require.Equal(t, "initial", target.Peek())
		recordTarget(&log, target)

		require.NoError(t, source.Set("one"))
		clock.Advance(20 * time.Millisecond)
		require.NoError(t, s.Flush())
		assert.Equal(t, "initial", target.Peek())

		require.NoError(t, source.Set("two"))
		clock.Advance(20 * time.Millisecond)
		require.NoError(t, s.Flush())
		assert.Equal(t, "initial", target.Peek())

		require.NoError(t, source.Set("three"))
		clock.Advance(25 * time.Millisecond)
		require.NoError(t, s.Flush())

		assert.Equal(t, "three", target.Peek())
		assert.Equal(t, []string{"target=three"}, log)
	})

	t.Run("throttle writes at most once per window", func(t *testing.T) {
		log := []string{}
		clock := testutils.NewClock()
		s := bind.NewScheduler(bind.WithClock(clock))
		source := bind.NewValue(0)
		target := bind.NewValue(-1)
		recordTarget(&log, target)

		b := New(source.Observer(), target.Observer(), WithQueue(s), WithThrottle(50*time.Millisecond))
		require.NoError(t, b.Bind())
		require.NoError(t, s.Flush())

		clock.Advance(10 * time.Millisecond)
		require.NoError(t, source.Set(1))
		require.NoError(t, s.Flush())

		clock.Advance(10 * time.Millisecond)
		require.NoError(t, source.Set(2))
		require.NoError(t, s.Flush())
		assert.Equal(t, 0, target.Peek())

		clock.Advance(30 * time.Millisecond)
		require.NoError(t, s.Flush())

		assert.Equal(t, []string{"target=0", "target=2"}, log)
	})

	t.Run("unbind cancels the pending update", func(t *testing.T) {
		s := bind.NewScheduler()
		source := bind.NewValue(1)
		target := bind.NewValue(0)

		b := New(source.Observer(), target.Observer(), WithQueue(s))
		require.NoError(t, b.Bind())
		b.Unbind()
		b.Unbind()

		require.NoError(t, source.Set(2))
		require.NoError(t, s.Flush())

		assert.False(t, b.Bound())
		assert.Equal(t, 0, target.Peek())
		assert.Equal(t, 0, s.Len())
	})

	t.Run("debounce without a queue fails", func(t *testing.T) {
		b := New(bind.NewValue(1).Observer(), bind.NewValue(0).Observer(), WithDebounce(time.Millisecond))

		assert.ErrorIs(t, b.Bind(), ErrNoQueue)
		assert.False(t, b.Bound())
	})

	t.Run("reports target write failures", func(t *testing.T) {
		source := bind.NewValue(1)
		target := bind.NewComputed(func() int { return 0 })

		b := New(source.Observer(), target.Observer())

		assert.ErrorIs(t, b.Bind(), bind.ErrReadOnly)
	})

	t.Run("app disposal cancels pending updates", func(t *testing.T) {
		app, err := bind.NewApp()
		require.NoError(t, err)

		source := bind.NewValue(1)
		target := bind.NewValue(0)

		b := New(source.Observer(), target.Observer(), WithQueue(app.Queue()), WithDebounce(time.Second))
		require.NoError(t, b.Bind())
		require.True(t, b.Pending())

		app.Dispose()
		require.NoError(t, app.Scheduler().Flush())

		assert.Equal(t, 0, target.Peek())
	})
}

func TestMode(t *testing.T) {
	assert.Equal(t, "one-time", OneTime.String())
	assert.Equal(t, "two-way", TwoWay.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}
