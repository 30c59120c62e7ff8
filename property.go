package bind

import "github.com/AnatoleLucet/bind/internal"

// Property is a typed handle over an observer.
type Property[T any] struct {
	observer Observer
}

// NewValue creates a standalone observable value.
func NewValue[T any](initial T) *Property[T] {
	return &Property[T]{observer: internal.NewValueObserver(initial)}
}

// Observe returns a typed handle over the observer of key on obj.
func Observe[T any](loc *Locator, obj any, key string) (*Property[T], error) {
	o, err := loc.GetObserver(obj, key)
	if err != nil {
		return nil, err
	}

	return &Property[T]{observer: o}, nil
}

// Get returns the current value, tracking the dependency if within a reactive context.
func (p *Property[T]) Get() T {
	return as[T](p.observer.GetValue())
}

// Peek returns the current value without tracking it.
func (p *Property[T]) Peek() T {
	return Untrack(p.Get)
}

// Set writes v and notifies subscribers, unless v is the current value.
// The returned error joins every subscriber failure.
func (p *Property[T]) Set(v T) error {
	return p.observer.SetValue(v)
}

// Update sets the result of fn applied to the current value.
func (p *Property[T]) Update(fn func(T) T) error {
	return p.Set(fn(p.Peek()))
}

func (p *Property[T]) Subscribe(s Subscriber) bool {
	return p.observer.Subscribe(s)
}

func (p *Property[T]) Unsubscribe(s Subscriber) bool {
	return p.observer.Unsubscribe(s)
}

// OnChange subscribes fn and returns the func that unsubscribes it.
func (p *Property[T]) OnChange(fn func(value, previous T) error) func() {
	h := OnChange(fn)
	p.observer.Subscribe(h)

	return func() { p.observer.Unsubscribe(h) }
}

// Observer returns the underlying observer.
func (p *Property[T]) Observer() Observer {
	return p.observer
}

// Computed is a typed handle over a computed observer.
type Computed[T any] struct {
	computed *ComputedObserver
}

type ComputedOption = internal.ComputedOption

// NewComputed creates a value derived from the observers get reads. It is evaluated
// lazily and recomputed only when one of them changes.
func NewComputed[T any](get func() T, opts ...ComputedOption) *Computed[T] {
	return &Computed[T]{
		computed: internal.NewComputed(func() any { return get() }, opts...),
	}
}

// WithSetter makes a computed writable.
func WithSetter[T any](fn func(T) error) ComputedOption {
	return internal.WithSetter(func(v any) error {
		return fn(as[T](v))
	})
}

// WithEquals replaces identity as the test deciding whether a recomputed value is a change.
func WithEquals(fn func(a, b any) bool) ComputedOption {
	return internal.WithEquals(fn)
}

// Get returns the current value, tracking the dependency if within a reactive context.
func (c *Computed[T]) Get() T {
	return as[T](c.computed.GetValue())
}

func (c *Computed[T]) Peek() T {
	return as[T](c.computed.Peek())
}

// Set forwards v to the setter, or fails with ErrReadOnly.
func (c *Computed[T]) Set(v T) error {
	return c.computed.SetValue(v)
}

func (c *Computed[T]) OnChange(fn func(value, previous T) error) func() {
	h := OnChange(fn)
	c.computed.Subscribe(h)

	return func() { c.computed.Unsubscribe(h) }
}

func (c *Computed[T]) Observer() Observer {
	return c.computed
}
