package internal

import (
	"fmt"
	"time"
)

type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskRunning
	TaskDone
	TaskCancelled
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskDone:
		return "done"
	case TaskCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// Task is a unit of work queued on a Scheduler.
type Task struct {
	id    uint64
	lane  Lane
	fn    func() error
	sched *Scheduler
	group *Group

	delay      time.Duration
	persistent bool

	// guarded by sched.mu
	status TaskStatus
	err    error
	done   chan struct{}

	// position in its lane
	listed     bool
	seq        uint64
	next, prev *Task

	// position in the delayed heap, -1 when not in it
	due   time.Time
	index int
}

type TaskOption func(*Task)

// WithDelay keeps the task out of its lane until d has elapsed on the scheduler's clock.
func WithDelay(d time.Duration) TaskOption {
	return func(t *Task) {
		t.delay = d
	}
}

// WithPersistent re-arms a delayed task after every run until it is cancelled.
// Persistent tasks never keep Yield waiting.
func WithPersistent() TaskOption {
	return func(t *Task) {
		t.persistent = true
	}
}

func (t *Task) ID() uint64 { return t.id }

func (t *Task) Lane() Lane { return t.lane }

func (t *Task) Status() TaskStatus {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()

	return t.status
}

// Err returns the failure of a finished task.
func (t *Task) Err() error {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()

	return t.err
}

// Done is closed once the task has finished or was cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel removes a pending task from the queue. It reports false when the task
// already ran, is running, or was cancelled before.
func (t *Task) Cancel() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()

	return t.sched.cancelLocked(t)
}

// delayHeap orders delayed tasks by due time, then by id.
type delayHeap []*Task

func (h delayHeap) Len() int { return len(h) }

func (h delayHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].id < h[j].id
	}
	return h[i].due.Before(h[j].due)
}

func (h delayHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
