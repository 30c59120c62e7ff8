package internal

import (
	"fmt"
	"iter"
)

type Lane int

const (
	LaneGeneral Lane = iota
	LaneRead
	LaneWrite

	laneCount
)

// passOrder is the order in which one pass drains the lanes.
var passOrder = [laneCount]Lane{LaneGeneral, LaneRead, LaneWrite}

func (l Lane) String() string {
	switch l {
	case LaneGeneral:
		return "general"
	case LaneRead:
		return "read"
	case LaneWrite:
		return "write"
	default:
		return fmt.Sprintf("Lane(%d)", int(l))
	}
}

// laneList is a FIFO of tasks linked through the tasks themselves, so a
// cancelled task is unlinked in O(1). The head's prev points to the tail.
type laneList struct {
	head *Task
	size int
}

func (l *laneList) Len() int {
	return l.size
}

func (l *laneList) Push(t *Task) {
	if t.listed {
		return
	}
	t.listed = true
	l.size++

	if l.head == nil {
		l.head = t
		t.prev = t // loop to self
		t.next = nil
		return
	}

	tail := l.head.prev
	tail.next = t
	t.prev = tail
	t.next = nil
	l.head.prev = t
}

func (l *laneList) Remove(t *Task) {
	if !t.listed {
		return
	}
	t.listed = false
	l.size--

	// single task
	if t.prev == t {
		l.head = nil
		t.next = nil
		return
	}

	// multiple tasks
	head := l.head
	if t == head {
		l.head = t.next
	} else {
		t.prev.next = t.next
	}

	next := t.next
	if next == nil {
		next = l.head
	}
	next.prev = t.prev

	t.prev = t
	t.next = nil
}

// Peek returns the oldest task without removing it.
func (l *laneList) Peek() *Task {
	return l.head
}

func (l *laneList) Pop() *Task {
	t := l.head
	if t != nil {
		l.Remove(t)
	}
	return t
}

func (l *laneList) All() iter.Seq[*Task] {
	return func(yield func(*Task) bool) {
		t := l.head

		for t != nil {
			next := t.next
			if !yield(t) {
				return
			}

			t = next
		}
	}
}
