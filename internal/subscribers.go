package internal

import (
	"errors"
	"slices"
)

// Subscriber is notified with the new and previous value of an observer.
type Subscriber interface {
	HandleChange(value, previous any) error
}

// CollectionSubscriber is notified once per turn with the coalesced changes of a collection.
type CollectionSubscriber interface {
	HandleCollectionChange(changes IndexMap) error
}

// Registry is an ordered set of subscribers.
type Registry[S comparable] struct {
	subs []S
}

// Add registers s. Adding a subscriber twice is a no-op.
func (r *Registry[S]) Add(s S) bool {
	if r.Has(s) {
		return false
	}

	r.subs = append(r.subs, s)
	return true
}

func (r *Registry[S]) Remove(s S) bool {
	i := slices.Index(r.subs, s)
	if i < 0 {
		return false
	}

	r.subs = slices.Delete(r.subs, i, i+1)
	return true
}

func (r *Registry[S]) Has(s S) bool {
	return slices.Contains(r.subs, s)
}

func (r *Registry[S]) Len() int {
	return len(r.subs)
}

// Notify calls every subscriber registered when delivery starts, in subscription order.
// A subscriber removed during delivery is skipped. One failing subscriber does not stop
// the others; all failures are returned joined. Computeds and reactions reached by the
// delivery settle before the outermost Notify returns.
func (r *Registry[S]) Notify(call func(S) error) error {
	if len(r.subs) == 0 {
		return nil
	}

	return GetRuntime().propagate(func() error {
		var errs []error
		for _, s := range slices.Clone(r.subs) {
			if !r.Has(s) {
				continue
			}

			if err := safeCall(func() error { return call(s) }); err != nil {
				errs = append(errs, wrapNotification(s, err))
			}
		}

		return errors.Join(errs...)
	})
}

func wrapNotification(s any, err error) error {
	var nerr *NotificationError
	if errors.As(err, &nerr) {
		return err
	}

	return &NotificationError{Subscriber: s, Err: err}
}

// Handler adapts a func to a Subscriber. Subscribe the same *Handler to get idempotency.
type Handler struct {
	fn func(value, previous any) error
}

func NewHandler(fn func(value, previous any) error) *Handler {
	return &Handler{fn: fn}
}

func (h *Handler) HandleChange(value, previous any) error {
	return h.fn(value, previous)
}

// CollectionHandler adapts a func to a CollectionSubscriber.
type CollectionHandler struct {
	fn func(changes IndexMap) error
}

func NewCollectionHandler(fn func(changes IndexMap) error) *CollectionHandler {
	return &CollectionHandler{fn: fn}
}

func (h *CollectionHandler) HandleCollectionChange(changes IndexMap) error {
	return h.fn(changes)
}
