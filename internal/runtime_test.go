package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntime(t *testing.T) {
	t.Run("one runtime per goroutine", func(t *testing.T) {
		rt := GetRuntime()
		assert.Same(t, rt, GetRuntime())

		other := make(chan *Runtime)
		go func() {
			r := GetRuntime()
			ReleaseRuntime()
			other <- r
		}()
		assert.NotSame(t, rt, <-other)
	})

	t.Run("release forgets the goroutine's runtime", func(t *testing.T) {
		replaced := make(chan bool)
		go func() {
			before := GetRuntime()
			ReleaseRuntime()
			after := GetRuntime()
			ReleaseRuntime()
			replaced <- before != after
		}()
		assert.True(t, <-replaced)
	})

	t.Run("release settles the pending turn", func(t *testing.T) {
		calls := 0

		l := newTestList()
		l.obs.Subscribe(NewCollectionHandler(func(IndexMap) error {
			calls++
			return nil
		}))

		errs := make(chan error)
		go func() {
			l.push(1)
			errs <- ReleaseRuntime()
		}()
		require.NoError(t, <-errs)

		assert.Equal(t, 1, calls)
		assert.False(t, l.obs.Pending())
	})

	t.Run("settle inside a settle is left to the outer one", func(t *testing.T) {
		log := []string{}

		a := newTestList()
		b := newTestList()
		a.obs.Subscribe(NewCollectionHandler(func(IndexMap) error {
			log = append(log, "a")
			b.push(1)
			return GetRuntime().Settle()
		}))
		b.obs.Subscribe(NewCollectionHandler(func(IndexMap) error {
			log = append(log, "b")
			return nil
		}))

		a.push(1)
		require.NoError(t, GetRuntime().Settle())

		assert.Equal(t, []string{"a", "b"}, log)
	})
}
