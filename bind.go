package bind

import (
	"reflect"
	"strings"

	"github.com/AnatoleLucet/bind/internal"
)

type (
	Observer             = internal.Observer
	Subscriber           = internal.Subscriber
	CollectionSubscriber = internal.CollectionSubscriber
	IndexMap             = internal.IndexMap
	CollectionObserver   = internal.CollectionObserver
	LengthObserver       = internal.LengthObserver
	ComputedObserver     = internal.ComputedObserver
	Handler              = internal.Handler
	CollectionHandler    = internal.CollectionHandler

	Effect    = internal.Effect
	Watcher   = internal.Watcher
	RunOption = internal.RunOption

	RecursionError    = internal.RecursionError
	NotificationError = internal.NotificationError
	TaskError         = internal.TaskError
	PanicError        = internal.PanicError
)

// Inserted marks an IndexMap entry whose item was added during the turn.
const Inserted = internal.Inserted

// DefaultRecursionLimit is how many consecutive times an effect or a watcher may run before the runtime goes idle.
const DefaultRecursionLimit = internal.DefaultRecursionLimit

var (
	ErrRecursionLimit    = internal.ErrRecursionLimit
	ErrReadOnly          = internal.ErrReadOnly
	ErrFlushLimit        = internal.ErrFlushLimit
	ErrReentrantYield    = internal.ErrReentrantYield
	ErrDisposed          = internal.ErrDisposed
	ErrUnsupportedObject = internal.ErrUnsupportedObject
	ErrNoSuchProperty    = internal.ErrNoSuchProperty
	ErrTypeMismatch      = internal.ErrTypeMismatch
)

func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}

	return v.(T)
}

// OnChange adapts a typed func to a Subscriber. Subscribing the returned handler twice is a no-op.
func OnChange[T any](fn func(value, previous T) error) *Handler {
	return internal.NewHandler(func(value, previous any) error {
		return fn(as[T](value), as[T](previous))
	})
}

// OnCollectionChange adapts a func to a CollectionSubscriber.
func OnCollectionChange(fn func(changes IndexMap) error) *CollectionHandler {
	return internal.NewCollectionHandler(fn)
}

// Batch defers property notifications until the outermost batch returns,
// then delivers pending collection notifications.
func Batch(fn func()) error {
	return internal.GetRuntime().Batch(fn)
}

// Settle delivers every collection notification pending on the calling goroutine.
func Settle() error {
	return internal.GetRuntime().Settle()
}

// Untrack runs the given function without tracking any reactive dependencies.
func Untrack[T any](fn func() T) T {
	var result T
	internal.GetRuntime().Untrack(func() { result = fn() })
	return result
}

// NewEffect creates an effect without running it. Call Run to start tracking.
func NewEffect(fn func(*Effect), opts ...RunOption) *Effect {
	return internal.NewEffect(fn, opts...)
}

// RunEffect creates an effect and runs it once. The effect keeps re-running on
// changes to what it read until Stop is called; nothing else releases it.
func RunEffect(fn func(*Effect), opts ...RunOption) (*Effect, error) {
	e := internal.NewEffect(fn, opts...)
	return e, e.Run()
}

// OnCleanup registers fn on the effect whose run is in progress. fn runs before
// that effect runs again, or when it stops. It reports false outside of an effect run.
func OnCleanup(fn func()) bool {
	e, ok := internal.GetRuntime().Tracker().Owner().(*Effect)
	if !ok {
		return false
	}

	e.OnCleanup(fn)
	return true
}

// ReleaseRuntime settles and forgets the reactive state of the calling goroutine.
// Worker goroutines that read or wrote observers call it before they exit.
func ReleaseRuntime() error {
	return internal.ReleaseRuntime()
}

// WithRecursionLimit bounds how many consecutive runs a single trigger may cause.
func WithRecursionLimit(n int) RunOption {
	return internal.WithRecursionLimit(n)
}

// WithComparer replaces shallow equality as the change test of a watcher.
func WithComparer(fn func(a, b any) bool) RunOption {
	return internal.WithComparer(fn)
}

// Watch calls back whenever the result of inspect changes. Results are compared
// by identity, and slices, arrays and maps element by element.
func Watch[T any](inspect func() T, callback func(value, previous T) error, opts ...RunOption) (*Watcher, error) {
	return internal.NewWatcher(
		func() any { return inspect() },
		func(value, previous any) error {
			return callback(as[T](value), as[T](previous))
		},
		opts...,
	)
}

// WatchPath watches a dotted path of keys starting at obj, such as "Owner.Address.City".
// Every hop is resolved through the locator, so a change anywhere along the path re-evaluates it.
// A hop landing on a nil object yields nil.
func WatchPath(loc *Locator, obj any, path string, callback func(value, previous any) error, opts ...RunOption) (*Watcher, error) {
	keys := strings.Split(path, ".")

	var resolveErr error
	inspect := func() any {
		current := obj
		for _, key := range keys {
			if isNil(current) {
				return nil
			}

			o, err := loc.GetObserver(current, key)
			if err != nil {
				if resolveErr == nil {
					resolveErr = err
				}
				return nil
			}
			current = o.GetValue()
		}
		return current
	}

	w, err := internal.NewWatcher(inspect, callback, opts...)
	if err != nil {
		return nil, err
	}
	if resolveErr != nil {
		w.Stop()
		return nil, resolveErr
	}

	return w, nil
}

// Same reports whether a and b are the same value: == for comparable values,
// identity of the underlying storage for slices, maps and funcs.
func Same(a, b any) bool {
	return internal.Same(a, b)
}

// ShallowEqual is Same, extended to slices, arrays and maps whose elements are Same.
func ShallowEqual(a, b any) bool {
	return internal.ShallowEqual(a, b)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
