package bind

import (
	"log/slog"
	"time"

	"github.com/AnatoleLucet/bind/internal"
)

type (
	Locator              = internal.Locator
	LocatorOption        = internal.LocatorOption
	DirtyChecker         = internal.DirtyChecker
	ObservableCollection = internal.ObservableCollection
)

// NewLocator creates an observer locator. Observers are cached per object and key for its whole life.
func NewLocator(opts ...LocatorOption) *Locator {
	return internal.NewLocator(opts...)
}

func WithLocatorLogger(l *slog.Logger) LocatorOption {
	return internal.WithLocatorLogger(l)
}

// WithDirtyChecking re-reads observed struct fields every interval, to catch
// writes that did not go through their observer.
func WithDirtyChecking(queue TaskQueue, interval time.Duration) LocatorOption {
	return internal.WithDirtyChecking(queue, interval)
}
