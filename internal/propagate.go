package internal

import "errors"

// reaction is an effect or a watcher. Reactions run once every dirty
// computed of the propagation has recomputed.
type reaction interface {
	reactionGuard() *guard
	react() error
}

// Propagator orders what a change causes: dirty computeds recompute lowest
// height first, then the queued reactions run in the order they were reached.
type Propagator struct {
	// nesting of propagate calls; only the outermost one drains
	depth int

	computeds DirtyHeap
	reactions []reaction

	// guards that ran while the runtime was busy, reset once it is idle again
	touched []*guard
}

// propagate runs fn as part of the current propagation. The outermost call
// drains the computeds and reactions fn reached before returning.
func (r *Runtime) propagate(fn func() error) error {
	p := &r.prop
	p.depth++

	err := safeCall(fn)
	if p.depth == 1 {
		err = errors.Join(err, r.drain())
	}

	p.depth--
	if p.depth == 0 {
		r.rest()
	}
	return err
}

func (r *Runtime) drain() error {
	p := &r.prop

	var errs []error
	for {
		if c := p.computeds.PopMin(); c != nil {
			if err := safeCall(c.recompute); err != nil {
				errs = append(errs, wrapNotification(c, err))
			}
			continue
		}

		if len(p.reactions) == 0 {
			break
		}

		next := p.reactions[0]
		p.reactions[0] = nil
		p.reactions = p.reactions[1:]
		next.reactionGuard().scheduled = false

		if err := safeCall(next.react); err != nil {
			errs = append(errs, wrapNotification(next, err))
		}
	}

	return errors.Join(errs...)
}

func (r *Runtime) enqueueComputed(c *ComputedObserver) error {
	if c.queued {
		return nil
	}

	c.queued = true
	c.stale = c.value
	r.prop.computeds.Insert(c)

	if r.prop.depth == 0 {
		return r.propagate(func() error { return nil })
	}
	return nil
}

func (r *Runtime) enqueueReaction(x reaction) error {
	g := x.reactionGuard()
	if g.stopped || g.scheduled {
		return nil
	}

	g.scheduled = true
	r.prop.reactions = append(r.prop.reactions, x)

	if r.prop.depth == 0 {
		return r.propagate(func() error { return nil })
	}
	return nil
}

// busy reports whether a propagation or a settle is in progress.
func (r *Runtime) busy() bool {
	return r.prop.depth > 0 || r.settling
}

// ran records that g finished running. Its streak survives until the runtime
// is idle, so that a reaction re-triggering itself across settle rounds stays bounded.
func (r *Runtime) ran(g *guard) {
	if !r.busy() && r.turn.Len() == 0 {
		g.streak = 0
		return
	}

	if !g.touched {
		g.touched = true
		r.prop.touched = append(r.prop.touched, g)
	}
}

func (r *Runtime) rest() {
	if r.busy() || r.turn.Len() > 0 {
		return
	}

	for _, g := range r.prop.touched {
		g.streak = 0
		g.touched = false
	}
	r.prop.touched = nil
}
