package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// Promise is a value that settles once, either resolved or rejected.
// Continuations run synchronously on the goroutine that settles it.
type Promise struct {
	mu sync.Mutex

	settled   bool
	value     any
	err       error
	callbacks []func(value any, err error)
	done      chan struct{}
}

func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

func Resolved(value any) *Promise {
	p := NewPromise()
	p.Resolve(value)
	return p
}

func Rejected(err error) *Promise {
	p := NewPromise()
	p.Reject(err)
	return p
}

// Resolve settles the promise with value. It reports false if it was already settled.
func (p *Promise) Resolve(value any) bool {
	return p.settle(value, nil)
}

// Reject settles the promise with err. It reports false if it was already settled.
func (p *Promise) Reject(err error) bool {
	return p.settle(nil, err)
}

func (p *Promise) settle(value any, err error) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}

	p.settled = true
	p.value = value
	p.err = err
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(value, err)
	}
	return true
}

// Then calls fn once the promise settles, right away if it already has.
func (p *Promise) Then(fn func(value any, err error)) {
	p.mu.Lock()
	if !p.settled {
		p.callbacks = append(p.callbacks, fn)
		p.mu.Unlock()
		return
	}
	value, err := p.value, p.err
	p.mu.Unlock()

	fn(value, err)
}

func (p *Promise) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.settled
}

func (p *Promise) Value() any {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.value
}

// Err returns the rejection of a settled promise.
func (p *Promise) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.err
}

func (p *Promise) Done() <-chan struct{} { return p.done }

// Wait blocks until the promise settles or ctx is done.
func (p *Promise) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// All settles once every promise has. It rejects with the joined rejections, if any.
func All(promises ...*Promise) *Promise {
	result := NewPromise()
	if len(promises) == 0 {
		result.Resolve(nil)
		return result
	}

	var mu sync.Mutex
	remaining := len(promises)
	errs := make([]error, len(promises))

	for i, p := range promises {
		p.Then(func(_ any, err error) {
			mu.Lock()
			errs[i] = err
			remaining--
			last := remaining == 0
			mu.Unlock()

			if !last {
				return
			}
			if err := errors.Join(errs...); err != nil {
				result.Reject(err)
				return
			}
			result.Resolve(nil)
		})
	}

	return result
}
