package bind

import (
	"iter"
	"slices"

	"github.com/AnatoleLucet/bind/internal"
)

// List is an observable slice. Mutations made during one turn reach collection
// subscribers as a single IndexMap when the turn settles.
type List[T any] struct {
	items []T
	obs   *CollectionObserver
}

// listView is what the observer sees of a list: reading it is never tracked.
type listView[T any] struct {
	l *List[T]
}

func (v listView[T]) Len() int { return len(v.l.items) }

func (v listView[T]) SetLen(n int) { v.l.SetLen(n) }

func NewList[T any](items ...T) *List[T] {
	l := &List[T]{items: slices.Clone(items)}
	l.obs = internal.NewCollectionObserver(internal.KindList, listView[T]{l})
	return l
}

func (l *List[T]) CollectionObserver() *CollectionObserver {
	return l.obs
}

// Len returns the number of items, tracking the list if within a reactive context.
func (l *List[T]) Len() int {
	l.obs.Track()
	return len(l.items)
}

func (l *List[T]) At(i int) T {
	l.obs.Track()
	return l.items[i]
}

// Items returns a copy of the items.
func (l *List[T]) Items() []T {
	l.obs.Track()
	return slices.Clone(l.items)
}

func (l *List[T]) All() iter.Seq2[int, T] {
	l.obs.Track()
	return func(yield func(int, T) bool) {
		for i, v := range l.items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Push appends values and returns the new length.
func (l *List[T]) Push(values ...T) int {
	l.obs.Splice(len(l.items), 0, len(values))
	l.items = append(l.items, values...)
	return len(l.items)
}

// Pop removes the last item.
func (l *List[T]) Pop() (T, bool) {
	var zero T
	n := len(l.items)
	if n == 0 {
		return zero, false
	}

	v := l.items[n-1]
	l.obs.Splice(n-1, 1, 0)
	l.items[n-1] = zero
	l.items = l.items[:n-1]
	return v, true
}

// Shift removes the first item.
func (l *List[T]) Shift() (T, bool) {
	var zero T
	if len(l.items) == 0 {
		return zero, false
	}

	v := l.items[0]
	l.obs.Splice(0, 1, 0)
	l.items = slices.Delete(l.items, 0, 1)
	return v, true
}

// Unshift prepends values and returns the new length.
func (l *List[T]) Unshift(values ...T) int {
	l.obs.Splice(0, 0, len(values))
	l.items = slices.Insert(l.items, 0, values...)
	return len(l.items)
}

// Splice removes deleteCount items at start, inserts values there and returns the removed items.
// A negative start counts from the end. Out of range arguments are clamped.
func (l *List[T]) Splice(start, deleteCount int, values ...T) []T {
	n := len(l.items)
	if start < 0 {
		start = max(n+start, 0)
	}
	start = min(start, n)
	deleteCount = min(max(deleteCount, 0), n-start)

	removed := slices.Clone(l.items[start : start+deleteCount])
	l.obs.Splice(start, deleteCount, len(values))
	l.items = slices.Replace(l.items, start, start+deleteCount, values...)
	return removed
}

// SetAt replaces the item at i. It reports false when i is out of range.
func (l *List[T]) SetAt(i int, v T) bool {
	if i < 0 || i >= len(l.items) {
		return false
	}
	if internal.Same(l.items[i], v) {
		return true
	}

	l.obs.Replace(i)
	l.items[i] = v
	return true
}

func (l *List[T]) Reverse() {
	n := len(l.items)
	if n < 2 {
		return
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = n - 1 - i
	}

	l.obs.Permute(perm)
	slices.Reverse(l.items)
}

// Sort orders the items with cmp, keeping equal items in place.
func (l *List[T]) Sort(cmp func(a, b T) int) {
	perm := make([]int, len(l.items))
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) int {
		return cmp(l.items[a], l.items[b])
	})

	sorted := make([]T, len(perm))
	for i, from := range perm {
		sorted[i] = l.items[from]
	}

	l.obs.Permute(perm)
	l.items = sorted
}

func (l *List[T]) Clear() {
	l.obs.Clear()
	clear(l.items)
	l.items = l.items[:0]
}

// SetLen truncates the list or extends it with zero values.
func (l *List[T]) SetLen(n int) {
	n = max(n, 0)
	if n < len(l.items) {
		l.Splice(n, len(l.items)-n)
		return
	}

	l.Push(make([]T, n-len(l.items))...)
}
