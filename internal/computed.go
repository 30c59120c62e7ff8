package internal

// ComputedObserver caches the result of a getter and recomputes it when one of
// the observers it read changes.
type ComputedObserver struct {
	get    func() any
	set    func(v any) error
	equals func(a, b any) bool

	deps  *DependencySet
	value any

	// the cached value is stale and must be recomputed on the next read
	dirty bool

	// one more than the highest dependency
	height int

	// waiting in the dirty heap; stale is the value subscribers last heard of
	queued bool
	stale  any

	subs Registry[Subscriber]
}

type ComputedOption func(*ComputedObserver)

// WithSetter makes the computed writable through fn.
func WithSetter(fn func(v any) error) ComputedOption {
	return func(c *ComputedObserver) {
		c.set = fn
	}
}

// WithEquals replaces the comparison deciding whether a recomputed value is a change.
func WithEquals(fn func(a, b any) bool) ComputedOption {
	return func(c *ComputedObserver) {
		c.equals = fn
	}
}

func NewComputed(get func() any, opts ...ComputedOption) *ComputedObserver {
	c := &ComputedObserver{
		get:    get,
		equals: Same,
		dirty:  true,
	}
	c.deps = NewDependencySet(c)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetValue returns the cached value, evaluating the getter first when stale.
func (c *ComputedObserver) GetValue() any {
	track(c)
	return c.Peek()
}

// Peek returns the current value without tracking the computed itself.
func (c *ComputedObserver) Peek() any {
	if c.dirty {
		c.evaluate()
	}
	return c.value
}

func (c *ComputedObserver) SetValue(v any) error {
	if c.set == nil {
		return ErrReadOnly
	}
	return c.set(v)
}

func (c *ComputedObserver) evaluate() {
	c.dirty = false

	// a panicking getter leaves the computed stale
	ok := false
	defer func() {
		if !ok {
			c.dirty = true
		}
	}()

	GetRuntime().tracker.Collect(c.deps, func() {
		c.value = c.get()
	})
	c.height = c.deps.height()
	ok = true
}

func (c *ComputedObserver) HandleChange(_, _ any) error {
	return c.invalidate()
}

func (c *ComputedObserver) HandleCollectionChange(IndexMap) error {
	return c.invalidate()
}

// invalidate marks the computed stale. An observed computed recomputes once
// the propagation reaches its height; an unobserved one lets go of its dependencies.
func (c *ComputedObserver) invalidate() error {
	if c.subs.Len() == 0 {
		c.Release()
		return nil
	}

	c.dirty = true
	return GetRuntime().enqueueComputed(c)
}

func (c *ComputedObserver) recompute() error {
	old := c.stale
	c.queued = false
	c.stale = nil

	if c.subs.Len() == 0 {
		return nil
	}

	value := c.Peek()
	if c.equals(old, value) {
		return nil
	}

	return c.subs.Notify(func(s Subscriber) error {
		return s.HandleChange(value, old)
	})
}

// Subscribe evaluates a stale computed so that it hears about its dependencies.
func (c *ComputedObserver) Subscribe(s Subscriber) bool {
	if !c.subs.Add(s) {
		return false
	}

	if c.dirty {
		c.evaluate()
	}
	return true
}

// Unsubscribe releases the dependencies along with the last subscriber.
func (c *ComputedObserver) Unsubscribe(s Subscriber) bool {
	if !c.subs.Remove(s) {
		return false
	}

	if c.subs.Len() == 0 {
		c.Release()
	}
	return true
}

func (c *ComputedObserver) Subscribers() int {
	return c.subs.Len()
}

// Dependencies returns how many observers the last evaluation read.
func (c *ComputedObserver) Dependencies() int {
	return c.deps.Len()
}

// Release drops every dependency. The next read evaluates again.
func (c *ComputedObserver) Release() {
	c.deps.Clear()
	c.dirty = true
}

func (c *ComputedObserver) addDependent(d Dependent)    { c.Subscribe(d) }
func (c *ComputedObserver) removeDependent(d Dependent) { c.Unsubscribe(d) }
func (c *ComputedObserver) level() int                  { return c.height }
