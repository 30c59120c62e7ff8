package internal

import "errors"

// DefaultRecursionLimit is how many consecutive times an effect or a watcher may run before the runtime goes idle.
const DefaultRecursionLimit = 10

type RunOption func(*runConfig)

type runConfig struct {
	limit  int
	equals func(a, b any) bool
}

func newRunConfig(opts []RunOption) runConfig {
	cfg := runConfig{
		limit:  DefaultRecursionLimit,
		equals: ShallowEqual,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.limit < 1 {
		cfg.limit = 1
	}

	return cfg
}

// WithRecursionLimit bounds how many consecutive runs a single trigger may cause.
func WithRecursionLimit(n int) RunOption {
	return func(c *runConfig) {
		c.limit = n
	}
}

// WithComparer replaces ShallowEqual as the watcher's change test.
func WithComparer(fn func(a, b any) bool) RunOption {
	return func(c *runConfig) {
		c.equals = fn
	}
}

// guard serializes the runs of an effect or a watcher: a trigger arriving while
// it runs is queued and replayed once the run returns. Consecutive runs are
// counted until the runtime goes idle, and the run past limit fails.
type guard struct {
	limit   int
	streak  int
	running bool
	queued  bool
	stopped bool

	// waiting in the runtime's reaction queue
	scheduled bool
	// registered with the runtime for a streak reset
	touched bool
}

func (g *guard) trigger(run func() error) error {
	if g.stopped {
		return nil
	}
	if g.running {
		g.queued = true
		return nil
	}

	rt := GetRuntime()
	if !rt.busy() {
		g.streak = 0
	}

	g.running = true
	defer func() {
		g.running = false
		rt.ran(g)
	}()

	for {
		g.queued = false
		if g.streak >= g.limit {
			return &RecursionError{Limit: g.limit}
		}
		g.streak++

		if err := run(); err != nil {
			return err
		}

		if !g.queued || g.stopped {
			return nil
		}
	}
}

// Effect re-runs fn whenever an observer it read during its last run changes.
type Effect struct {
	fn   func(*Effect)
	deps *DependencySet

	guard    guard
	runs     int
	cleanups []func()
}

func NewEffect(fn func(*Effect), opts ...RunOption) *Effect {
	cfg := newRunConfig(opts)

	e := &Effect{
		fn:    fn,
		guard: guard{limit: cfg.limit},
	}
	e.deps = NewDependencySet(e)

	return e
}

// Run executes the effect now and re-executes it while its own run keeps triggering it.
func (e *Effect) Run() error {
	return e.guard.trigger(e.execute)
}

func (e *Effect) execute() error {
	cerr := e.cleanup()
	e.runs++

	var err error
	GetRuntime().tracker.Collect(e.deps, func() {
		err = safeCall(func() error {
			e.fn(e)
			return nil
		})
	})

	// stopped from inside its own run
	if e.guard.stopped {
		e.deps.Clear()
		e.cleanup()
	}

	return errors.Join(cerr, err)
}

// OnCleanup registers fn to run before the next run of the effect, or when it stops.
func (e *Effect) OnCleanup(fn func()) {
	e.cleanups = append(e.cleanups, fn)
}

// cleanup runs the registered cleanups untracked, in registration order.
func (e *Effect) cleanup() error {
	cleanups := e.cleanups
	e.cleanups = nil

	var errs []error
	GetRuntime().Untrack(func() {
		for _, fn := range cleanups {
			if err := safeCall(func() error { fn(); return nil }); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func (e *Effect) HandleChange(_, _ any) error {
	return GetRuntime().enqueueReaction(e)
}

func (e *Effect) HandleCollectionChange(IndexMap) error {
	return GetRuntime().enqueueReaction(e)
}

func (e *Effect) reactionGuard() *guard { return &e.guard }
func (e *Effect) react() error          { return e.Run() }

// Stop releases every dependency and runs the pending cleanups. The effect never runs again.
func (e *Effect) Stop() {
	if e.guard.stopped {
		return
	}

	e.guard.stopped = true
	e.deps.Clear()
	e.cleanup()
}

func (e *Effect) Stopped() bool { return e.guard.stopped }

// Runs returns how many times the effect executed.
func (e *Effect) Runs() int { return e.runs }

func (e *Effect) Dependencies() int { return e.deps.Len() }
