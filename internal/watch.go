package internal

// Watcher evaluates an inspector under tracking and calls back with its result
// whenever a dependency change makes the result differ.
type Watcher struct {
	inspect  func() any
	callback func(value, previous any) error
	equals   func(a, b any) bool

	deps  *DependencySet
	value any
	guard guard
}

// NewWatcher evaluates inspect once to collect its dependencies. The callback is
// not called for that first evaluation.
func NewWatcher(inspect func() any, callback func(value, previous any) error, opts ...RunOption) (*Watcher, error) {
	cfg := newRunConfig(opts)

	w := &Watcher{
		inspect:  inspect,
		callback: callback,
		equals:   cfg.equals,
		guard:    guard{limit: cfg.limit},
	}
	w.deps = NewDependencySet(w)

	value, err := w.evaluate()
	if err != nil {
		w.Stop()
		return nil, err
	}
	w.value = value

	return w, nil
}

func (w *Watcher) evaluate() (value any, err error) {
	GetRuntime().tracker.Collect(w.deps, func() {
		err = safeCall(func() error {
			value = w.inspect()
			return nil
		})
	})

	if w.guard.stopped {
		w.deps.Clear()
	}
	return value, err
}

func (w *Watcher) check() error {
	value, err := w.evaluate()
	if err != nil {
		return err
	}

	old := w.value
	w.value = value
	if w.equals(old, value) || w.guard.stopped {
		return nil
	}

	GetRuntime().Untrack(func() {
		err = safeCall(func() error {
			return w.callback(value, old)
		})
	})
	return err
}

func (w *Watcher) HandleChange(_, _ any) error {
	return GetRuntime().enqueueReaction(w)
}

func (w *Watcher) HandleCollectionChange(IndexMap) error {
	return GetRuntime().enqueueReaction(w)
}

func (w *Watcher) reactionGuard() *guard { return &w.guard }
func (w *Watcher) react() error          { return w.guard.trigger(w.check) }

// Value returns the result of the last evaluation.
func (w *Watcher) Value() any { return w.value }

func (w *Watcher) Stop() {
	if w.guard.stopped {
		return
	}

	w.guard.stopped = true
	w.deps.Clear()
}

func (w *Watcher) Stopped() bool { return w.guard.stopped }
