package internal

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AnatoleLucet/bind/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxFlushPasses bounds the passes of a single Yield.
const DefaultMaxFlushPasses = 1000

const tracerName = "github.com/AnatoleLucet/bind"

// Scheduler runs queued tasks in passes over its lanes: general, then read, then write.
// Tasks may be queued from any goroutine. They run on the goroutine calling Flush, Tick or Yield.
type Scheduler struct {
	mu sync.Mutex

	lanes   [laneCount]laneList
	delayed delayHeap

	// delayed tasks that keep Yield waiting
	blocking int

	nextID   uint64
	seq      uint64
	disposed bool

	// one drain at a time; drainer is the runtime holding it
	drain   sync.Mutex
	drainer atomic.Pointer[Runtime]
	wake    chan struct{}

	clock     Clock
	logger    *slog.Logger
	metrics   *schedulerMetrics
	tracer    trace.Tracer
	maxPasses int
}

type schedulerConfig struct {
	clock     Clock
	logger    *slog.Logger
	metrics   MetricsConfig
	tracer    trace.TracerProvider
	maxPasses int
}

type SchedulerOption func(*schedulerConfig)

func WithClock(c Clock) SchedulerOption {
	return func(cfg *schedulerConfig) {
		cfg.clock = c
	}
}

func WithLogger(l *slog.Logger) SchedulerOption {
	return func(cfg *schedulerConfig) {
		cfg.logger = l
	}
}

// WithRegistry registers the scheduler metrics on r instead of a private registry.
func WithRegistry(r prometheus.Registerer) SchedulerOption {
	return func(cfg *schedulerConfig) {
		cfg.metrics.Registry = r
	}
}

func WithMetricsNamespace(namespace, subsystem string) SchedulerOption {
	return func(cfg *schedulerConfig) {
		cfg.metrics.Namespace = namespace
		cfg.metrics.Subsystem = subsystem
	}
}

func WithTracerProvider(tp trace.TracerProvider) SchedulerOption {
	return func(cfg *schedulerConfig) {
		cfg.tracer = tp
	}
}

// WithMaxFlushPasses sets how many passes Yield runs before giving up with ErrFlushLimit.
func WithMaxFlushPasses(n int) SchedulerOption {
	return func(cfg *schedulerConfig) {
		cfg.maxPasses = n
	}
}

func NewScheduler(opts ...SchedulerOption) *Scheduler {
	cfg := schedulerConfig{
		clock:     SystemClock(),
		logger:    logging.NewNop(),
		metrics:   defaultMetricsConfig(),
		maxPasses: DefaultMaxFlushPasses,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.tracer == nil {
		cfg.tracer = otel.GetTracerProvider()
	}
	if cfg.maxPasses < 1 {
		cfg.maxPasses = 1
	}

	return &Scheduler{
		wake:      make(chan struct{}, 1),
		clock:     cfg.clock,
		logger:    cfg.logger,
		metrics:   newSchedulerMetrics(cfg.metrics),
		tracer:    cfg.tracer.Tracer(tracerName),
		maxPasses: cfg.maxPasses,
	}
}

func (s *Scheduler) Clock() Clock { return s.clock }

func (s *Scheduler) QueueTask(fn func() error, opts ...TaskOption) *Task {
	return s.queue(LaneGeneral, nil, fn, opts)
}

// QueueRead queues fn in the read lane, drained before the write lane of the same pass.
func (s *Scheduler) QueueRead(fn func() error, opts ...TaskOption) *Task {
	return s.queue(LaneRead, nil, fn, opts)
}

func (s *Scheduler) QueueWrite(fn func() error, opts ...TaskOption) *Task {
	return s.queue(LaneWrite, nil, fn, opts)
}

func (s *Scheduler) queue(lane Lane, g *Group, fn func() error, opts []TaskOption) *Task {
	t := &Task{
		lane:  lane,
		fn:    fn,
		sched: s,
		group: g,
		done:  make(chan struct{}),
		index: -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.delay <= 0 {
		t.persistent = false
	}

	s.mu.Lock()
	s.nextID++
	t.id = s.nextID

	if s.disposed || (g != nil && g.cancelled) {
		t.status = TaskCancelled
		close(t.done)
		s.mu.Unlock()
		return t
	}

	if t.delay > 0 {
		s.armLocked(t)
	} else {
		s.enlistLocked(t)
	}
	if g != nil {
		g.tasks[t] = struct{}{}
	}
	s.mu.Unlock()

	s.metrics.queued.WithLabelValues(lane.String()).Inc()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return t
}

func (s *Scheduler) armLocked(t *Task) {
	t.due = s.clock.Now().Add(t.delay)
	heap.Push(&s.delayed, t)

	if !t.persistent {
		s.blocking++
	}
}

func (s *Scheduler) enlistLocked(t *Task) {
	s.seq++
	t.seq = s.seq
	s.lanes[t.lane].Push(t)

	s.metrics.depth.WithLabelValues(t.lane.String()).Set(float64(s.lanes[t.lane].Len()))
}

// promoteLocked moves every due delayed task to its lane.
func (s *Scheduler) promoteLocked() {
	now := s.clock.Now()

	for len(s.delayed) > 0 && !s.delayed[0].due.After(now) {
		t := heap.Pop(&s.delayed).(*Task)
		if !t.persistent {
			s.blocking--
		}
		s.enlistLocked(t)
	}
}

func (s *Scheduler) cancelLocked(t *Task) bool {
	switch t.status {
	case TaskPending:
	case TaskRunning:
		// a running persistent task can still be kept from re-arming
		if !t.persistent {
			return false
		}
	default:
		return false
	}

	if t.index >= 0 {
		heap.Remove(&s.delayed, t.index)
		if !t.persistent {
			s.blocking--
		}
	} else if t.listed {
		s.lanes[t.lane].Remove(t)
		s.metrics.depth.WithLabelValues(t.lane.String()).Set(float64(s.lanes[t.lane].Len()))
	}

	s.finishLocked(t, TaskCancelled, nil)
	s.metrics.cancelled.WithLabelValues(t.lane.String()).Inc()

	return true
}

func (s *Scheduler) finishLocked(t *Task, status TaskStatus, err error) {
	t.status = status
	t.err = err
	close(t.done)

	if t.group != nil {
		delete(t.group.tasks, t)
	}
}

// Len returns how many tasks are waiting, ready or delayed.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readyLocked() + len(s.delayed)
}

func (s *Scheduler) readyLocked() int {
	n := 0
	for i := range s.lanes {
		n += s.lanes[i].Len()
	}
	return n
}

// Flush runs one pass. Each lane runs the tasks it holds when the pass reaches it,
// so a task queued into a lane not yet drained joins this pass and a task queued
// into a drained lane waits for the next one. A nested Flush is a no-op.
func (s *Scheduler) Flush() error {
	release, ok := s.acquire()
	if !ok {
		return nil
	}
	defer release()

	_, err := s.pass(context.Background(), false)
	return err
}

// Tick runs only the tasks that are ready when it is called.
// A nested Tick is a no-op.
func (s *Scheduler) Tick() error {
	release, ok := s.acquire()
	if !ok {
		return nil
	}
	defer release()

	_, err := s.pass(context.Background(), true)
	return err
}

// Yield runs passes until no task is ready, waiting on the clock while delayed
// tasks remain. Persistent tasks run when due but never keep Yield waiting.
func (s *Scheduler) Yield(ctx context.Context) (err error) {
	release, ok := s.acquire()
	if !ok {
		return ErrReentrantYield
	}
	defer release()

	ctx, span := s.tracer.Start(ctx, "bind.scheduler.yield")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "yield failed")
		}
		span.End()
	}()

	rt := GetRuntime()

	var errs []error
	for passes := 0; ; {
		if cerr := ctx.Err(); cerr != nil {
			return errors.Join(append(errs, cerr)...)
		}

		if serr := rt.Settle(); serr != nil {
			errs = append(errs, serr)
		}

		s.mu.Lock()
		s.promoteLocked()
		ready := s.readyLocked()
		wait, blocking := s.nextDueLocked()
		s.mu.Unlock()

		if ready > 0 {
			if passes >= s.maxPasses {
				span.SetAttributes(attribute.Int("bind.passes", passes))
				errs = append(errs, fmt.Errorf("%w: still busy after %d passes", ErrFlushLimit, passes))
				return errors.Join(errs...)
			}

			passes++
			if _, perr := s.pass(ctx, false); perr != nil {
				errs = append(errs, perr)
			}
			continue
		}

		if !blocking {
			span.SetAttributes(attribute.Int("bind.passes", passes))
			return errors.Join(errs...)
		}

		select {
		case <-ctx.Done():
		case <-s.clock.After(wait):
		case <-s.wake:
		}
	}
}

func (s *Scheduler) nextDueLocked() (time.Duration, bool) {
	if s.blocking == 0 {
		return 0, false
	}

	wait := s.delayed[0].due.Sub(s.clock.Now())
	return max(wait, 0), true
}

// acquire takes the drain lock unless the calling goroutine already holds it.
func (s *Scheduler) acquire() (func(), bool) {
	rt := GetRuntime()
	if s.drainer.Load() == rt {
		return nil, false
	}

	s.drain.Lock()
	s.drainer.Store(rt)

	return func() {
		s.drainer.Store(nil)
		s.drain.Unlock()
	}, true
}

// pass settles the turn, promotes due tasks and drains every lane once.
// With snapshot set, only tasks ready at the start of the pass run.
func (s *Scheduler) pass(ctx context.Context, snapshot bool) (int, error) {
	_, span := s.tracer.Start(ctx, "bind.scheduler.pass")
	defer span.End()

	s.metrics.passes.Inc()

	var errs []error
	if err := GetRuntime().Settle(); err != nil {
		errs = append(errs, err)
	}

	s.mu.Lock()
	s.promoteLocked()
	limit := s.seq
	s.mu.Unlock()

	ran := 0
	for _, lane := range passOrder {
		if !snapshot {
			s.mu.Lock()
			limit = s.seq
			s.mu.Unlock()
		}

		n, err := s.runLane(lane, limit)
		ran += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	span.SetAttributes(attribute.Int("bind.tasks", ran))

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "task failed")
	}

	return ran, err
}

// runLane runs the tasks of lane enlisted up to limit, in order.
func (s *Scheduler) runLane(lane Lane, limit uint64) (int, error) {
	var errs []error

	ran := 0
	for {
		s.mu.Lock()
		t := s.lanes[lane].Peek()
		if t == nil || t.seq > limit {
			s.mu.Unlock()
			break
		}

		s.lanes[lane].Remove(t)
		t.status = TaskRunning
		s.metrics.depth.WithLabelValues(lane.String()).Set(float64(s.lanes[lane].Len()))
		s.mu.Unlock()

		ran++
		if err := s.run(t); err != nil {
			errs = append(errs, err)
		}
	}

	return ran, errors.Join(errs...)
}

func (s *Scheduler) run(t *Task) error {
	lane := t.lane.String()

	start := time.Now()
	err := safeCall(t.fn)
	s.metrics.duration.WithLabelValues(lane).Observe(time.Since(start).Seconds())
	s.metrics.executed.WithLabelValues(lane).Inc()

	if err != nil {
		s.metrics.failed.WithLabelValues(lane).Inc()
		s.logger.Error("task failed", "task", t.id, "lane", lane, "err", err)
		err = &TaskError{ID: t.id, Lane: t.lane, Err: err}
	}

	s.mu.Lock()
	if t.status == TaskRunning {
		if t.persistent && !s.disposed {
			t.status = TaskPending
			s.armLocked(t)
		} else {
			s.finishLocked(t, TaskDone, err)
		}
	}
	s.mu.Unlock()

	if serr := GetRuntime().Settle(); serr != nil {
		err = errors.Join(err, serr)
	}

	return err
}

// Dispose cancels every pending task. Tasks queued afterwards are born cancelled.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.disposed = true

	for i := range s.lanes {
		for t := range s.lanes[i].All() {
			s.cancelLocked(t)
		}
	}
	for len(s.delayed) > 0 {
		s.cancelLocked(s.delayed[0])
	}
}

func (s *Scheduler) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.disposed
}

// TaskQueue is what a Scheduler and a Group have in common.
type TaskQueue interface {
	QueueTask(fn func() error, opts ...TaskOption) *Task
	QueueRead(fn func() error, opts ...TaskOption) *Task
	QueueWrite(fn func() error, opts ...TaskOption) *Task
}

// Group tags tasks so that they can be cancelled together.
type Group struct {
	sched *Scheduler

	// guarded by sched.mu
	tasks     map[*Task]struct{}
	cancelled bool
}

func (s *Scheduler) NewGroup() *Group {
	return &Group{
		sched: s,
		tasks: make(map[*Task]struct{}),
	}
}

func (g *Group) Scheduler() *Scheduler { return g.sched }

func (g *Group) Clock() Clock { return g.sched.clock }

func (g *Group) QueueTask(fn func() error, opts ...TaskOption) *Task {
	return g.sched.queue(LaneGeneral, g, fn, opts)
}

func (g *Group) QueueRead(fn func() error, opts ...TaskOption) *Task {
	return g.sched.queue(LaneRead, g, fn, opts)
}

func (g *Group) QueueWrite(fn func() error, opts ...TaskOption) *Task {
	return g.sched.queue(LaneWrite, g, fn, opts)
}

// Len returns how many tasks of the group are still pending.
func (g *Group) Len() int {
	g.sched.mu.Lock()
	defer g.sched.mu.Unlock()

	return len(g.tasks)
}

// Cancel cancels every pending task of the group and returns how many it cancelled.
// Tasks queued through the group afterwards are born cancelled.
func (g *Group) Cancel() int {
	g.sched.mu.Lock()
	defer g.sched.mu.Unlock()

	g.cancelled = true

	n := 0
	for t := range g.tasks {
		if g.sched.cancelLocked(t) {
			n++
		}
	}
	return n
}

func (g *Group) Cancelled() bool {
	g.sched.mu.Lock()
	defer g.sched.mu.Unlock()

	return g.cancelled
}
