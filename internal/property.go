package internal

// Observer is the handle returned by the locator for a single value.
type Observer interface {
	Dependency

	GetValue() any
	SetValue(v any) error
	Subscribe(s Subscriber) bool
	Unsubscribe(s Subscriber) bool
}

// PropertyObserver wraps one object+key pair, or a standalone value when it has no accessor.
type PropertyObserver struct {
	key      string
	accessor Accessor

	value any
	subs  Registry[Subscriber]

	// value held before the current batch started, valid while batched is set
	batched  bool
	batchOld any

	// called when the observer gains its first or loses its last subscriber
	onObserved func(o *PropertyObserver, observed bool)
}

// NewValueObserver creates an observer over a value that lives only in the observer.
func NewValueObserver(initial any) *PropertyObserver {
	return &PropertyObserver{value: initial}
}

// NewPropertyObserver creates an observer reading and writing through accessor.
func NewPropertyObserver(key string, accessor Accessor) *PropertyObserver {
	return &PropertyObserver{
		key:      key,
		accessor: accessor,
		value:    accessor.Get(),
	}
}

func (o *PropertyObserver) Key() string { return o.key }

// GetValue returns the current value, tracking it as a dependency if within a reactive evaluation.
func (o *PropertyObserver) GetValue() any {
	track(o)
	return o.value
}

// Peek returns the current value without tracking it.
func (o *PropertyObserver) Peek() any {
	return o.value
}

func (o *PropertyObserver) SetValue(v any) error {
	old := o.value
	if Same(old, v) {
		return nil
	}

	if o.accessor != nil {
		if err := o.accessor.Set(v); err != nil {
			return err
		}
	}
	o.value = v

	return o.changed(old)
}

// Check compares the cached value with the raw storage and adopts the latter
// when they differ. Used to observe writes that bypassed the observer.
func (o *PropertyObserver) Check() error {
	if o.accessor == nil {
		return nil
	}

	current := o.accessor.Get()
	if Same(current, o.value) {
		return nil
	}

	old := o.value
	o.value = current

	return o.changed(old)
}

func (o *PropertyObserver) changed(old any) error {
	rt := GetRuntime()
	if rt.IsBatching() {
		if !o.batched {
			o.batched = true
			o.batchOld = old
			rt.batcher.Enqueue(o)
		}
		return nil
	}

	return o.notify(o.value, old)
}

func (o *PropertyObserver) flushBatch() error {
	old := o.batchOld
	o.batched = false
	o.batchOld = nil

	if Same(o.value, old) {
		return nil
	}

	return o.notify(o.value, old)
}

func (o *PropertyObserver) notify(value, old any) error {
	return o.subs.Notify(func(s Subscriber) error {
		return s.HandleChange(value, old)
	})
}

func (o *PropertyObserver) Subscribe(s Subscriber) bool {
	if !o.subs.Add(s) {
		return false
	}

	if o.subs.Len() == 1 && o.onObserved != nil {
		o.onObserved(o, true)
	}
	return true
}

func (o *PropertyObserver) Unsubscribe(s Subscriber) bool {
	if !o.subs.Remove(s) {
		return false
	}

	if o.subs.Len() == 0 && o.onObserved != nil {
		o.onObserved(o, false)
	}
	return true
}

// Observed reports whether the observer has at least one subscriber.
func (o *PropertyObserver) Observed() bool {
	return o.subs.Len() > 0
}

func (o *PropertyObserver) Subscribers() int {
	return o.subs.Len()
}

func (o *PropertyObserver) addDependent(d Dependent)    { o.Subscribe(d) }
func (o *PropertyObserver) removeDependent(d Dependent) { o.Unsubscribe(d) }
func (o *PropertyObserver) level() int                  { return 0 }
