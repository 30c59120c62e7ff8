package internal

import (
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/AnatoleLucet/bind/internal/logging"
)

// DefaultDirtyCheckInterval is how often observed properties are re-read when dirty checking is on.
const DefaultDirtyCheckInterval = 100 * time.Millisecond

// DirtyChecker periodically re-reads observed properties to catch writes that bypassed their observer.
// It only keeps a task armed while it has properties to check.
type DirtyChecker struct {
	queue    TaskQueue
	interval time.Duration
	logger   *slog.Logger

	observers []*PropertyObserver
	task      *Task
	disposed  bool
}

func NewDirtyChecker(queue TaskQueue, interval time.Duration, logger *slog.Logger) *DirtyChecker {
	if interval <= 0 {
		interval = DefaultDirtyCheckInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &DirtyChecker{
		queue:    queue,
		interval: interval,
		logger:   logger,
	}
}

func (d *DirtyChecker) Add(o *PropertyObserver) {
	if d.disposed || slices.Contains(d.observers, o) {
		return
	}
	d.observers = append(d.observers, o)

	if d.task == nil {
		d.task = d.queue.QueueTask(d.Check, WithDelay(d.interval), WithPersistent())
	}
}

func (d *DirtyChecker) Remove(o *PropertyObserver) {
	i := slices.Index(d.observers, o)
	if i < 0 {
		return
	}
	d.observers = slices.Delete(d.observers, i, i+1)

	if len(d.observers) == 0 {
		d.stop()
	}
}

// Check compares every tracked property with its storage and notifies the ones that changed.
func (d *DirtyChecker) Check() error {
	var errs []error

	for _, o := range slices.Clone(d.observers) {
		if err := o.Check(); err != nil {
			d.logger.Error("dirty check failed", "key", o.Key(), "err", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (d *DirtyChecker) Len() int {
	return len(d.observers)
}

// Armed reports whether a check task is queued.
func (d *DirtyChecker) Armed() bool {
	return d.task != nil
}

func (d *DirtyChecker) stop() {
	if d.task != nil {
		d.task.Cancel()
		d.task = nil
	}
}

func (d *DirtyChecker) Dispose() {
	d.disposed = true
	d.stop()
	d.observers = nil
}
