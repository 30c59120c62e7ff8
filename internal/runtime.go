package internal

import (
	"errors"
	"fmt"
)

// Runtime holds the per-goroutine reactive state: the active dependency frame,
// the batch depth, the propagation in progress and the pending turn of
// collection notifications.
type Runtime struct {
	tracker *Tracker
	batcher *Batcher
	turn    *TurnQueue
	prop    Propagator

	settling bool
}

func NewRuntime() *Runtime {
	return &Runtime{
		tracker: NewTracker(),
		batcher: NewBatcher(),
		turn:    NewTurnQueue(),
	}
}

func (r *Runtime) Tracker() *Tracker { return r.tracker }

func (r *Runtime) IsBatching() bool { return r.batcher.IsBatching() }

// Batch defers property notifications until the outermost batch returns,
// then settles the turn.
func (r *Runtime) Batch(fn func()) error {
	if !r.batcher.Run(fn) {
		return nil
	}

	err := r.propagate(r.batcher.flush)
	return errors.Join(err, r.Settle())
}

// Settle delivers every pending collection notification of this goroutine,
// round after round while subscribers keep mutating collections. A settle
// requested while one is running is left to the running one.
func (r *Runtime) Settle() error {
	if r.settling {
		return nil
	}

	r.settling = true
	defer func() {
		r.settling = false
		r.rest()
	}()

	var errs []error
	for round := 0; r.turn.Len() > 0; round++ {
		if round >= maxTurnRounds {
			r.turn.discard()
			errs = append(errs, fmt.Errorf("%w: turn refilled %d times", ErrFlushLimit, maxTurnRounds))
			break
		}

		if err := r.propagate(r.turn.flush); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Pending reports whether collection notifications are waiting for the turn to end.
func (r *Runtime) Pending() bool {
	return r.turn.Len() > 0
}

func (r *Runtime) Untrack(fn func()) {
	r.tracker.RunUntracked(fn)
}

// track records dep in the active dependency frame, if any.
func track(dep Dependency) {
	GetRuntime().tracker.Track(dep)
}
