package binding

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AnatoleLucet/bind"
	"github.com/AnatoleLucet/bind/internal/logging"
)

// ErrNoQueue is returned by Bind when debouncing or throttling without a task queue.
var ErrNoQueue = errors.New("binding: debounce and throttle need a task queue")

type Mode int

const (
	// OneTime copies the source to the target once, on Bind.
	OneTime Mode = iota
	// ToView keeps the target in sync with the source.
	ToView
	// FromView keeps the source in sync with the target.
	FromView
	// TwoWay is ToView and FromView together. The source wins on Bind.
	TwoWay
)

func (m Mode) String() string {
	switch m {
	case OneTime:
		return "one-time"
	case ToView:
		return "to-view"
	case FromView:
		return "from-view"
	case TwoWay:
		return "two-way"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) toView() bool { return m == OneTime || m == ToView || m == TwoWay }

func (m Mode) fromView() bool { return m == FromView || m == TwoWay }

type Option func(*Binding)

func WithMode(m Mode) Option {
	return func(b *Binding) {
		b.mode = m
	}
}

// WithQueue defers target updates to the write lane of q.
// Without a queue the target is written synchronously.
func WithQueue(q bind.TaskQueue) Option {
	return func(b *Binding) {
		b.queue = q
	}
}

// WithDebounce writes the target only once the source has been quiet for d.
func WithDebounce(d time.Duration) Option {
	return func(b *Binding) {
		b.debounce = d
	}
}

// WithThrottle writes the target at most once per d. The last value of a burst is
// written when the window closes.
func WithThrottle(d time.Duration) Option {
	return func(b *Binding) {
		b.throttle = d
	}
}

// WithClock sets the clock of throttling. It defaults to the clock of the queue.
func WithClock(c bind.Clock) Option {
	return func(b *Binding) {
		b.clock = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Binding) {
		b.logger = l
	}
}

// Binding keeps a target observer in sync with a source observer, or the other way around.
type Binding struct {
	source bind.Observer
	target bind.Observer
	mode   Mode

	queue    bind.TaskQueue
	debounce time.Duration
	throttle time.Duration
	clock    bind.Clock
	logger   *slog.Logger

	toView   *bind.Handler
	fromView *bind.Handler

	mu        sync.Mutex
	bound     bool
	pending   *bind.Task
	seq       uint64
	lastWrite time.Time
	writing   bool
}

// New creates a ToView binding from source to target. Nothing happens until Bind.
func New(source, target bind.Observer, opts ...Option) *Binding {
	b := &Binding{
		source: source,
		target: target,
		mode:   ToView,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	if b.clock == nil {
		if c, ok := b.queue.(interface{ Clock() bind.Clock }); ok {
			b.clock = c.Clock()
		} else {
			b.clock = bind.SystemClock()
		}
	}

	b.toView = bind.OnChange(func(value, _ any) error {
		return b.updateTarget(value)
	})
	b.fromView = bind.OnChange(func(value, _ any) error {
		return b.updateSource(value)
	})

	return b
}

func (b *Binding) Mode() Mode { return b.mode }

func (b *Binding) Bound() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.bound
}

// Pending reports whether a target update is waiting in the queue.
func (b *Binding) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.pending != nil
}

// Bind performs the initial update and starts observing. Binding twice is a no-op.
func (b *Binding) Bind() error {
	if b.queue == nil && (b.debounce > 0 || b.throttle > 0) {
		return ErrNoQueue
	}

	b.mu.Lock()
	if b.bound {
		b.mu.Unlock()
		return nil
	}
	b.bound = true
	b.mu.Unlock()

	var err error
	switch {
	case b.mode.toView():
		err = b.updateTarget(bind.Untrack(b.source.GetValue))
	case b.mode.fromView():
		err = b.updateSource(bind.Untrack(b.target.GetValue))
	}

	if b.mode == ToView || b.mode == TwoWay {
		b.source.Subscribe(b.toView)
	}
	if b.mode.fromView() {
		b.target.Subscribe(b.fromView)
	}

	b.logger.Debug("bound", "mode", b.mode)

	return err
}

// Unbind stops observing and cancels the pending target update.
func (b *Binding) Unbind() {
	b.mu.Lock()
	if !b.bound {
		b.mu.Unlock()
		return
	}
	b.bound = false
	pending := b.pending
	b.pending = nil
	b.seq++
	b.mu.Unlock()

	if pending != nil {
		pending.Cancel()
	}

	b.source.Unsubscribe(b.toView)
	b.target.Unsubscribe(b.fromView)

	b.logger.Debug("unbound", "mode", b.mode)
}

// updateTarget writes value to the target, through the queue when there is one.
// A queued update replaces the one still pending.
func (b *Binding) updateTarget(value any) error {
	if b.queue == nil {
		return b.writeTarget(value)
	}

	b.mu.Lock()
	b.seq++
	seq := b.seq
	superseded := b.pending

	var opts []bind.TaskOption
	switch {
	case b.debounce > 0:
		opts = append(opts, bind.WithDelay(b.debounce))
	case b.throttle > 0 && !b.lastWrite.IsZero():
		if wait := b.lastWrite.Add(b.throttle).Sub(b.clock.Now()); wait > 0 {
			opts = append(opts, bind.WithDelay(wait))
		}
	}
	b.mu.Unlock()

	if superseded != nil && superseded.Cancel() {
		b.logger.Debug("update superseded", "task", superseded.ID())
	}

	task := b.queue.QueueWrite(func() error {
		b.mu.Lock()
		if seq != b.seq {
			b.mu.Unlock()
			return nil
		}
		b.pending = nil
		b.lastWrite = b.clock.Now()
		b.mu.Unlock()

		return b.writeTarget(value)
	}, opts...)

	b.mu.Lock()
	if seq == b.seq && task.Status() == bind.TaskPending {
		b.pending = task
	}
	b.mu.Unlock()

	return nil
}

func (b *Binding) writeTarget(value any) error {
	b.mu.Lock()
	b.writing = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.writing = false
		b.mu.Unlock()
	}()

	if err := b.target.SetValue(value); err != nil {
		return fmt.Errorf("binding: failed to update target: %w", err)
	}
	return nil
}

func (b *Binding) updateSource(value any) error {
	b.mu.Lock()
	echo := b.writing
	b.mu.Unlock()

	if echo {
		return nil
	}

	if err := b.source.SetValue(value); err != nil {
		return fmt.Errorf("binding: failed to update source: %w", err)
	}
	return nil
}
