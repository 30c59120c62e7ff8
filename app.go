package bind

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AnatoleLucet/bind/internal"
	"github.com/AnatoleLucet/bind/internal/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// App is an application root: it owns a locator and queues its tasks through its
// own group on a scheduler, which may be shared with other apps.
type App struct {
	id     string
	config Config
	logger *slog.Logger

	scheduler     *Scheduler
	ownsScheduler bool
	registry      prometheus.Registerer
	clock         Clock

	group   *Group
	locator *Locator

	mu       sync.Mutex
	disposed bool
}

// Option defines a functional option for configuring an App.
type Option func(*App)

func WithConfig(cfg Config) Option {
	return func(a *App) {
		a.config = cfg
	}
}

// WithLogger sets the structured logger of the app and of the scheduler it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithScheduler shares s instead of creating a scheduler for the app.
// Disposing the app then only cancels the app's own tasks.
func WithScheduler(s *Scheduler) Option {
	return func(a *App) {
		a.scheduler = s
	}
}

// WithRegistry registers the metrics of the scheduler the app creates on r.
func WithRegistry(r prometheus.Registerer) Option {
	return func(a *App) {
		a.registry = r
	}
}

// WithAppClock sets the clock of the scheduler the app creates.
func WithAppClock(c Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

func NewApp(opts ...Option) (*App, error) {
	a := &App{
		id:     uuid.NewString(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.config.Validate(); err != nil {
		return nil, err
	}

	if a.logger == nil {
		a.logger = logging.NewNop()

		if a.config.LogLevel != "" {
			level, _ := logging.ParseLevel(a.config.LogLevel)
			a.logger = logging.New(level)
		}
	}
	a.logger = a.logger.With("app", a.id)

	if a.scheduler == nil {
		schedOpts := []SchedulerOption{
			internal.WithLogger(a.logger),
			internal.WithMaxFlushPasses(a.config.MaxFlushPasses),
			internal.WithMetricsNamespace(a.config.Metrics.Namespace, a.config.Metrics.Subsystem),
		}
		if a.registry != nil {
			schedOpts = append(schedOpts, internal.WithRegistry(a.registry))
		}
		if a.clock != nil {
			schedOpts = append(schedOpts, internal.WithClock(a.clock))
		}

		a.scheduler = internal.NewScheduler(schedOpts...)
		a.ownsScheduler = true
	}

	a.group = a.scheduler.NewGroup()

	locOpts := []LocatorOption{internal.WithLocatorLogger(a.logger)}
	if a.config.DirtyCheckInterval > 0 {
		locOpts = append(locOpts, internal.WithDirtyChecking(a.group, a.config.DirtyCheckInterval))
	}
	a.locator = internal.NewLocator(locOpts...)

	a.logger.Debug("app created", "shared_scheduler", !a.ownsScheduler)

	return a, nil
}

func (a *App) ID() string { return a.id }

func (a *App) Config() Config { return a.config }

func (a *App) Logger() *slog.Logger { return a.logger }

func (a *App) Scheduler() *Scheduler { return a.scheduler }

func (a *App) Locator() *Locator { return a.locator }

// Queue returns the task queue of the app. Tasks queued through it are cancelled by Dispose.
func (a *App) Queue() TaskQueue { return a.group }

func (a *App) QueueTask(fn func() error, opts ...TaskOption) *Task {
	return a.group.QueueTask(fn, opts...)
}

func (a *App) QueueRead(fn func() error, opts ...TaskOption) *Task {
	return a.group.QueueRead(fn, opts...)
}

func (a *App) QueueWrite(fn func() error, opts ...TaskOption) *Task {
	return a.group.QueueWrite(fn, opts...)
}

// Observer returns the observer of key on obj from the app's locator.
func (a *App) Observer(obj any, key string) (Observer, error) {
	return a.locator.GetObserver(obj, key)
}

// Effect runs fn as an effect bounded by the configured recursion limit.
func (a *App) Effect(fn func(*Effect)) (*Effect, error) {
	return RunEffect(fn, WithRecursionLimit(a.config.RecursionLimit))
}

// Watch watches inspect with the configured recursion limit.
func (a *App) Watch(inspect func() any, callback func(value, previous any) error) (*Watcher, error) {
	return Watch(inspect, callback, WithRecursionLimit(a.config.RecursionLimit))
}

// WatchPath watches a dotted path through the app's locator.
func (a *App) WatchPath(obj any, path string, callback func(value, previous any) error) (*Watcher, error) {
	return WatchPath(a.locator, obj, path, callback, WithRecursionLimit(a.config.RecursionLimit))
}

// Yield drains the scheduler.
func (a *App) Yield(ctx context.Context) error {
	return a.scheduler.Yield(ctx)
}

// Dispose cancels every pending task queued through the app, including dirty
// checks and binding updates, and drops the locator cache. A shared scheduler
// keeps serving other apps. Effects and watchers are left running; Stop releases them.
func (a *App) Dispose() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.disposed = true
	a.mu.Unlock()

	cancelled := a.group.Cancel()
	a.locator.Dispose()
	if a.ownsScheduler {
		a.scheduler.Dispose()
	}

	a.logger.Debug("app disposed", "cancelled", cancelled)
}

func (a *App) Disposed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.disposed
}
