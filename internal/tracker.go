package internal

type Tracker struct {
	tracking bool

	// the dependency set recording reads, nil outside of any evaluation
	current *DependencySet
}

func NewTracker() *Tracker {
	return &Tracker{
		tracking: true,
	}
}

// Collect runs fn with deps as the active frame and drops every dependency
// fn no longer reads once it returns.
func (t *Tracker) Collect(deps *DependencySet, fn func()) {
	prevTracking := t.tracking
	prev := t.current

	t.current = deps
	t.tracking = true
	deps.begin()

	defer func() {
		deps.end()
		t.current = prev
		t.tracking = prevTracking
	}()

	fn()
}

func (t *Tracker) RunUntracked(fn func()) {
	prev := t.tracking
	t.tracking = false
	defer func() { t.tracking = prev }()

	fn()
}

func (t *Tracker) Track(dep Dependency) {
	if t.ShouldTrack() {
		t.current.observe(dep)
	}
}

func (t *Tracker) ShouldTrack() bool {
	return t.current != nil && t.tracking
}

// Owner returns the computation whose evaluation is running, or nil.
func (t *Tracker) Owner() Dependent {
	if t.current == nil {
		return nil
	}
	return t.current.owner
}
