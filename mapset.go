package bind

import (
	"iter"
	"slices"

	"github.com/AnatoleLucet/bind/internal"
)

// orderedKeys keeps keys in insertion order, which is the order IndexMaps refer to.
type orderedKeys[K comparable] struct {
	keys []K
	pos  map[K]int
}

func newOrderedKeys[K comparable]() orderedKeys[K] {
	return orderedKeys[K]{pos: make(map[K]int)}
}

func (o *orderedKeys[K]) Len() int { return len(o.keys) }

func (o *orderedKeys[K]) index(k K) (int, bool) {
	i, ok := o.pos[k]
	return i, ok
}

func (o *orderedKeys[K]) add(k K) {
	o.pos[k] = len(o.keys)
	o.keys = append(o.keys, k)
}

func (o *orderedKeys[K]) remove(i int) {
	delete(o.pos, o.keys[i])
	o.keys = slices.Delete(o.keys, i, i+1)

	for j := i; j < len(o.keys); j++ {
		o.pos[o.keys[j]] = j
	}
}

func (o *orderedKeys[K]) clear() {
	o.keys = nil
	clear(o.pos)
}

// Map is an observable map that remembers insertion order.
type Map[K comparable, V any] struct {
	order  orderedKeys[K]
	values map[K]V
	obs    *CollectionObserver
}

func NewMap[K comparable, V any]() *Map[K, V] {
	m := &Map[K, V]{
		order:  newOrderedKeys[K](),
		values: make(map[K]V),
	}
	m.obs = internal.NewCollectionObserver(internal.KindMap, &m.order)
	return m
}

func (m *Map[K, V]) CollectionObserver() *CollectionObserver {
	return m.obs
}

func (m *Map[K, V]) Len() int {
	m.obs.Track()
	return len(m.order.keys)
}

func (m *Map[K, V]) Get(k K) (V, bool) {
	m.obs.Track()
	v, ok := m.values[k]
	return v, ok
}

func (m *Map[K, V]) Has(k K) bool {
	m.obs.Track()
	_, ok := m.values[k]
	return ok
}

// Keys returns the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	m.obs.Track()
	return slices.Clone(m.order.keys)
}

func (m *Map[K, V]) All() iter.Seq2[K, V] {
	m.obs.Track()
	return func(yield func(K, V) bool) {
		for _, k := range m.order.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// Set adds or replaces the value of k. Replacing a value with itself is a no-op.
func (m *Map[K, V]) Set(k K, v V) {
	if i, ok := m.order.index(k); ok {
		if internal.Same(m.values[k], v) {
			return
		}

		m.obs.Replace(i)
		m.values[k] = v
		return
	}

	m.obs.Splice(m.order.Len(), 0, 1)
	m.order.add(k)
	m.values[k] = v
}

func (m *Map[K, V]) Delete(k K) bool {
	i, ok := m.order.index(k)
	if !ok {
		return false
	}

	m.obs.Splice(i, 1, 0)
	m.order.remove(i)
	delete(m.values, k)
	return true
}

func (m *Map[K, V]) Clear() {
	m.obs.Clear()
	m.order.clear()
	clear(m.values)
}

// Set is an observable set that remembers insertion order.
type Set[T comparable] struct {
	order orderedKeys[T]
	obs   *CollectionObserver
}

func NewSet[T comparable](values ...T) *Set[T] {
	s := &Set[T]{order: newOrderedKeys[T]()}
	for _, v := range values {
		if _, ok := s.order.index(v); !ok {
			s.order.add(v)
		}
	}

	s.obs = internal.NewCollectionObserver(internal.KindSet, &s.order)
	return s
}

func (s *Set[T]) CollectionObserver() *CollectionObserver {
	return s.obs
}

func (s *Set[T]) Len() int {
	s.obs.Track()
	return s.order.Len()
}

func (s *Set[T]) Has(v T) bool {
	s.obs.Track()
	_, ok := s.order.index(v)
	return ok
}

// Values returns the members in insertion order.
func (s *Set[T]) Values() []T {
	s.obs.Track()
	return slices.Clone(s.order.keys)
}

func (s *Set[T]) All() iter.Seq[T] {
	s.obs.Track()
	return func(yield func(T) bool) {
		for _, v := range s.order.keys {
			if !yield(v) {
				return
			}
		}
	}
}

// Add inserts v and reports whether it was missing.
func (s *Set[T]) Add(v T) bool {
	if _, ok := s.order.index(v); ok {
		return false
	}

	s.obs.Splice(s.order.Len(), 0, 1)
	s.order.add(v)
	return true
}

func (s *Set[T]) Delete(v T) bool {
	i, ok := s.order.index(v)
	if !ok {
		return false
	}

	s.obs.Splice(i, 1, 0)
	s.order.remove(i)
	return true
}

func (s *Set[T]) Clear() {
	s.obs.Clear()
	s.order.clear()
}
