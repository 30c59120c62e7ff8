package internal

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AnatoleLucet/bind/internal/logging"
)

// ObservableCollection is implemented by collections that carry their own observer.
type ObservableCollection interface {
	CollectionObserver() *CollectionObserver
}

// Locator hands out one observer per (object, key) for its whole life.
type Locator struct {
	mu        sync.Mutex
	observers map[identity]map[string]Observer
	disposed  bool

	dirty  *DirtyChecker
	logger *slog.Logger

	dirtyQueue    TaskQueue
	dirtyInterval time.Duration
}

type LocatorOption func(*Locator)

func WithLocatorLogger(l *slog.Logger) LocatorOption {
	return func(loc *Locator) {
		loc.logger = l
	}
}

// WithDirtyChecking re-reads observed properties every interval through tasks queued on queue.
func WithDirtyChecking(queue TaskQueue, interval time.Duration) LocatorOption {
	return func(loc *Locator) {
		loc.dirtyQueue = queue
		loc.dirtyInterval = interval
	}
}

func NewLocator(opts ...LocatorOption) *Locator {
	loc := &Locator{
		observers: make(map[identity]map[string]Observer),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(loc)
	}

	if loc.dirtyQueue != nil {
		loc.dirty = NewDirtyChecker(loc.dirtyQueue, loc.dirtyInterval, loc.logger)
	}

	return loc
}

// GetObserver returns the observer of key on obj, creating it on first use.
// "length" and "size" on an observable collection return its length observer.
func (l *Locator) GetObserver(obj any, key string) (Observer, error) {
	if c, ok := obj.(ObservableCollection); ok && (key == "length" || key == "size") {
		return c.CollectionObserver().Length(), nil
	}

	id, err := identityOf(obj)
	if err != nil {
		return nil, err
	}

	if o, err := l.lookup(id, key); o != nil || err != nil {
		return o, err
	}

	accessor, err := NewAccessor(obj, key)
	if err != nil {
		return nil, err
	}

	o := NewPropertyObserver(key, accessor)
	if l.dirty != nil {
		o.onObserved = l.observed
	}

	return l.store(id, key, o)
}

// GetCollectionObserver returns the observer owned by the collection.
func (l *Locator) GetCollectionObserver(obj any) (*CollectionObserver, error) {
	c, ok := obj.(ObservableCollection)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an observable collection", ErrUnsupportedObject, obj)
	}

	return c.CollectionObserver(), nil
}

// DefineComputed registers a computed observer under (obj, key). Later lookups of
// that pair return it instead of a property observer.
func (l *Locator) DefineComputed(obj any, key string, get func() any, set func(v any) error) (*ComputedObserver, error) {
	id, err := identityOf(obj)
	if err != nil {
		return nil, err
	}

	var opts []ComputedOption
	if set != nil {
		opts = append(opts, WithSetter(set))
	}
	c := NewComputed(get, opts...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return nil, ErrDisposed
	}
	if l.observers[id] == nil {
		l.observers[id] = make(map[string]Observer)
	}
	l.observers[id][key] = c

	return c, nil
}

func (l *Locator) lookup(id identity, key string) (Observer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return nil, ErrDisposed
	}
	return l.observers[id][key], nil
}

// store keeps o unless another observer was stored for the pair in the meantime.
func (l *Locator) store(id identity, key string, o Observer) (Observer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return nil, ErrDisposed
	}

	keys := l.observers[id]
	if keys == nil {
		keys = make(map[string]Observer)
		l.observers[id] = keys
	}
	if existing, ok := keys[key]; ok {
		return existing, nil
	}

	keys[key] = o
	return o, nil
}

func (l *Locator) observed(o *PropertyObserver, observed bool) {
	if observed {
		l.dirty.Add(o)
	} else {
		l.dirty.Remove(o)
	}
}

// Forget drops every observer of obj. Observers already handed out keep working
// but are no longer returned.
func (l *Locator) Forget(obj any) {
	id, err := identityOf(obj)
	if err != nil {
		return
	}

	l.mu.Lock()
	keys := l.observers[id]
	delete(l.observers, id)
	l.mu.Unlock()

	if l.dirty == nil {
		return
	}
	for _, o := range keys {
		if p, ok := o.(*PropertyObserver); ok {
			p.onObserved = nil
			l.dirty.Remove(p)
		}
	}
}

// Len returns how many observers the locator holds.
func (l *Locator) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, keys := range l.observers {
		n += len(keys)
	}
	return n
}

// DirtyChecker returns the dirty checker, nil when dirty checking is off.
func (l *Locator) DirtyChecker() *DirtyChecker {
	return l.dirty
}

// Dispose stops dirty checking and drops the cache. Later lookups fail with ErrDisposed.
func (l *Locator) Dispose() {
	l.mu.Lock()
	l.disposed = true
	l.observers = make(map[identity]map[string]Observer)
	l.mu.Unlock()

	if l.dirty != nil {
		l.dirty.Dispose()
	}
}
