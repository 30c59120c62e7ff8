package bind

import (
	"log/slog"
	"time"

	"github.com/AnatoleLucet/bind/internal"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

type (
	Scheduler       = internal.Scheduler
	SchedulerOption = internal.SchedulerOption
	Task            = internal.Task
	TaskOption      = internal.TaskOption
	TaskStatus      = internal.TaskStatus
	TaskQueue       = internal.TaskQueue
	Group           = internal.Group
	Lane            = internal.Lane
	Clock           = internal.Clock
)

const (
	LaneGeneral = internal.LaneGeneral
	LaneRead    = internal.LaneRead
	LaneWrite   = internal.LaneWrite

	TaskPending   = internal.TaskPending
	TaskRunning   = internal.TaskRunning
	TaskDone      = internal.TaskDone
	TaskCancelled = internal.TaskCancelled
)

// DefaultMaxFlushPasses bounds the passes of a single Yield.
const DefaultMaxFlushPasses = internal.DefaultMaxFlushPasses

// NewScheduler creates a task scheduler with read, write and general lanes.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	return internal.NewScheduler(opts...)
}

// WithDelay keeps a task out of its lane until d has elapsed.
func WithDelay(d time.Duration) TaskOption {
	return internal.WithDelay(d)
}

// WithPersistent re-arms a delayed task after every run until it is cancelled.
func WithPersistent() TaskOption {
	return internal.WithPersistent()
}

// SystemClock returns the wall clock.
func SystemClock() Clock { return internal.SystemClock() }

func WithClock(c Clock) SchedulerOption {
	return internal.WithClock(c)
}

func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return internal.WithLogger(l)
}

// WithMetricsRegistry registers the scheduler metrics on r instead of a private registry.
func WithMetricsRegistry(r prometheus.Registerer) SchedulerOption {
	return internal.WithRegistry(r)
}

func WithMetricsNamespace(namespace, subsystem string) SchedulerOption {
	return internal.WithMetricsNamespace(namespace, subsystem)
}

func WithTracerProvider(tp trace.TracerProvider) SchedulerOption {
	return internal.WithTracerProvider(tp)
}

func WithMaxFlushPasses(n int) SchedulerOption {
	return internal.WithMaxFlushPasses(n)
}
