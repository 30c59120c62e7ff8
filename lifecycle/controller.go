package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/AnatoleLucet/bind/internal/logging"
	"github.com/google/uuid"
)

var (
	ErrDeactivated  = errors.New("lifecycle: activation cancelled by deactivation")
	ErrDisposed     = errors.New("lifecycle: controller disposed")
	ErrInvalidState = errors.New("lifecycle: invalid state for transition")
)

type Phase int

const (
	PhaseBinding Phase = iota
	PhaseBound
	PhaseAttaching
	PhaseAttached
	PhaseDetaching
	PhaseUnbinding

	// children of the controller, activated or deactivated together
	phaseChildren
)

func (p Phase) String() string {
	switch p {
	case PhaseBinding:
		return "binding"
	case PhaseBound:
		return "bound"
	case PhaseAttaching:
		return "attaching"
	case PhaseAttached:
		return "attached"
	case PhaseDetaching:
		return "detaching"
	case PhaseUnbinding:
		return "unbinding"
	case phaseChildren:
		return "children"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

var activationOrder = []Phase{PhaseBinding, PhaseBound, phaseChildren, PhaseAttaching, PhaseAttached}

type State int

const (
	StateIdle State = iota
	StateActivating
	StateActive
	StateFailed
	StateDeactivating
	StateDeactivated
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	case StateDeactivating:
		return "deactivating"
	case StateDeactivated:
		return "deactivated"
	case StateDisposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// HookError is a failed or panicking hook.
type HookError struct {
	Controller string
	Phase      Phase
	Err        error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s: %s hook failed: %v", e.Controller, e.Phase, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// Hook runs one phase. A nil promise means the phase completed synchronously.
// ctx is cancelled when the controller is deactivated or disposed.
type Hook func(ctx context.Context) *Promise

// Hooks are the phase hooks of a controller. Nil hooks are skipped.
type Hooks struct {
	Binding   Hook
	Bound     Hook
	Attaching Hook
	Attached  Hook
	Detaching Hook
	Unbinding Hook
}

func (h Hooks) get(p Phase) Hook {
	switch p {
	case PhaseBinding:
		return h.Binding
	case PhaseBound:
		return h.Bound
	case PhaseAttaching:
		return h.Attaching
	case PhaseAttached:
		return h.Attached
	case PhaseDetaching:
		return h.Detaching
	case PhaseUnbinding:
		return h.Unbinding
	}
	return nil
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// Controller drives the activation and deactivation of a component and its children.
// The controller tree itself is not safe for concurrent mutation.
type Controller struct {
	id     string
	name   string
	hooks  Hooks
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	reached  [phaseChildren]bool // activation phases that completed
	children bool                // children activation started
	cancel   context.CancelFunc

	activation   *Promise
	deactivation *Promise

	// cleanup functions to be called when the controller is disposed
	cleanups []func()

	// hook panic handlers
	catchers []func(any)

	parent       *Controller
	prevSibling  *Controller
	nextSibling  *Controller
	childrenHead *Controller
	childrenTail *Controller
}

func New(name string, hooks Hooks, opts ...Option) *Controller {
	c := &Controller{
		id:    uuid.NewString(),
		name:  name,
		hooks: hooks,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	c.logger = c.logger.With("controller", name, "controller_id", c.id)

	return c
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) Name() string { return c.name }

func (c *Controller) Parent() *Controller { return c.parent }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// AddChild appends child to the children of c. Children activate after
// the bound phase of their parent and deactivate before its unbinding phase.
func (c *Controller) AddChild(child *Controller) {
	child.parent = c
	child.prevSibling = c.childrenTail
	child.nextSibling = nil

	if c.childrenTail != nil {
		c.childrenTail.nextSibling = child
	} else {
		c.childrenHead = child
	}

	c.childrenTail = child
}

func (c *Controller) Children() iter.Seq[*Controller] {
	return func(yield func(*Controller) bool) {
		child := c.childrenHead

		for child != nil {
			if !yield(child) {
				return
			}

			child = child.nextSibling
		}
	}
}

// Activate runs binding, bound, the children, attaching and attached in order,
// each phase waiting for the promise of the previous one. Deactivating before
// it completes rejects the returned promise with ErrDeactivated, and the
// remaining phases never run.
func (c *Controller) Activate(ctx context.Context) *Promise {
	c.mu.Lock()
	switch c.state {
	case StateDisposed:
		c.mu.Unlock()
		return Rejected(ErrDisposed)
	case StateActivating, StateActive:
		p := c.activation
		c.mu.Unlock()
		return p
	case StateFailed, StateDeactivating:
		state := c.state
		c.mu.Unlock()
		return Rejected(fmt.Errorf("%w: activate while %s", ErrInvalidState, state))
	}

	actx, cancel := context.WithCancel(ctx)
	result := NewPromise()

	c.state = StateActivating
	c.reached = [phaseChildren]bool{}
	c.children = false
	c.cancel = cancel
	c.activation = result
	c.mu.Unlock()

	c.logger.Debug("activating")

	var step func(i int)
	step = func(i int) {
		if i == len(activationOrder) {
			c.finishActivation(actx, result)
			return
		}

		phase := activationOrder[i]

		var p *Promise
		if phase == phaseChildren {
			c.mu.Lock()
			c.children = true
			c.mu.Unlock()

			p = c.activateChildren(actx)
		} else {
			p = c.runHook(actx, phase)
		}

		p.Then(func(_ any, err error) {
			c.mu.Lock()
			if actx.Err() != nil {
				c.mu.Unlock()
				result.Reject(ErrDeactivated)
				return
			}
			if err != nil {
				c.state = StateFailed
				c.mu.Unlock()
				result.Reject(err)
				return
			}
			if phase != phaseChildren {
				c.reached[phase] = true
			}
			c.mu.Unlock()

			step(i + 1)
		})
	}
	step(0)

	return result
}

func (c *Controller) finishActivation(ctx context.Context, result *Promise) {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		result.Reject(ErrDeactivated)
		return
	}
	c.state = StateActive
	c.mu.Unlock()

	c.logger.Debug("activated")
	result.Resolve(nil)
}

func (c *Controller) activateChildren(ctx context.Context) *Promise {
	var ps []*Promise
	for child := range c.Children() {
		ps = append(ps, child.Activate(ctx))
	}
	return All(ps...)
}

func (c *Controller) deactivateChildren(ctx context.Context) *Promise {
	var ps []*Promise
	for child := range c.Children() {
		ps = append(ps, child.Deactivate(ctx))
	}
	return All(ps...)
}

// Deactivate cancels a pending activation, then runs detaching, the children
// and unbinding, each only if its activation counterpart was reached: detaching
// after a completed attaching, unbinding after a completed bound. Every teardown
// phase runs even if an earlier one fails; the failures are joined.
func (c *Controller) Deactivate(ctx context.Context) *Promise {
	c.mu.Lock()
	switch c.state {
	case StateDisposed:
		c.mu.Unlock()
		return Rejected(ErrDisposed)
	case StateIdle, StateDeactivated:
		c.mu.Unlock()
		return Resolved(nil)
	case StateDeactivating:
		p := c.deactivation
		c.mu.Unlock()
		return p
	}

	c.cancel()
	activation := c.activation
	reached := c.reached
	children := c.children
	result := NewPromise()

	c.state = StateDeactivating
	c.deactivation = result
	c.mu.Unlock()

	activation.Reject(ErrDeactivated)
	c.logger.Debug("deactivating")

	var phases []Phase
	if reached[PhaseAttaching] {
		phases = append(phases, PhaseDetaching)
	}
	if children {
		phases = append(phases, phaseChildren)
	}
	if reached[PhaseBound] {
		phases = append(phases, PhaseUnbinding)
	}

	var errs []error
	var step func(i int)
	step = func(i int) {
		if i == len(phases) {
			c.mu.Lock()
			if c.state == StateDeactivating {
				c.state = StateDeactivated
			}
			c.mu.Unlock()

			if err := errors.Join(errs...); err != nil {
				result.Reject(err)
				return
			}
			c.logger.Debug("deactivated")
			result.Resolve(nil)
			return
		}

		var p *Promise
		if phases[i] == phaseChildren {
			p = c.deactivateChildren(ctx)
		} else {
			p = c.runHook(ctx, phases[i])
		}

		p.Then(func(_ any, err error) {
			if err != nil {
				errs = append(errs, err)
			}
			step(i + 1)
		})
	}
	step(0)

	return result
}

// runHook calls the hook of phase. Its failure or panic rejects with a *HookError.
func (c *Controller) runHook(ctx context.Context, phase Phase) *Promise {
	hook := c.hooks.get(phase)
	if hook == nil {
		return Resolved(nil)
	}

	result := NewPromise()
	c.invoke(ctx, phase, hook).Then(func(value any, err error) {
		if err != nil {
			c.logger.Warn("hook failed", "phase", phase, "err", err)
			result.Reject(&HookError{Controller: c.name, Phase: phase, Err: err})
			return
		}
		result.Resolve(value)
	})

	return result
}

func (c *Controller) invoke(ctx context.Context, phase Phase, hook Hook) (p *Promise) {
	defer func() {
		if r := recover(); r != nil {
			for _, catcher := range c.catchers {
				catcher(r)
			}
			p = Rejected(fmt.Errorf("panic: %v", r))
		}
	}()

	p = hook(ctx)
	if p == nil {
		p = Resolved(nil)
	}
	return p
}

// OnDispose registers fn to run when the controller is disposed.
func (c *Controller) OnDispose(fn func()) {
	c.cleanups = append(c.cleanups, fn)
}

// OnError registers fn to receive the value of a panicking hook.
func (c *Controller) OnError(fn func(any)) {
	c.catchers = append(c.catchers, fn)
}

// Dispose cancels any pending activation, disposes the children, then runs the
// cleanups. It runs no hooks: Deactivate first for an orderly teardown.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return
	}
	c.state = StateDisposed
	cancel := c.cancel
	activation := c.activation
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if activation != nil {
		activation.Reject(ErrDisposed)
	}

	c.disposeChildren()

	for i := 0; i < len(c.cleanups); i++ {
		c.cleanups[i]()
	}
	c.cleanups = nil
}

func (c *Controller) disposeChildren() {
	for child := range c.Children() {
		child.Dispose()
	}
	c.childrenHead = nil
	c.childrenTail = nil
}
