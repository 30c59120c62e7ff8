package internal

import "errors"

// maxTurnRounds bounds how many times a turn may refill itself while settling.
const maxTurnRounds = 1000

type turnFlusher interface {
	flushTurn() error
	discardTurn(from *TurnQueue)
}

// TurnQueue holds the observers with changes waiting for the end of the current turn.
type TurnQueue struct {
	pending []turnFlusher
}

func NewTurnQueue() *TurnQueue {
	return &TurnQueue{
		pending: make([]turnFlusher, 0),
	}
}

func (q *TurnQueue) Enqueue(f turnFlusher) {
	q.pending = append(q.pending, f)
}

func (q *TurnQueue) Len() int {
	return len(q.pending)
}

// flush delivers one round. Observers mutated while it runs wait for the next one.
func (q *TurnQueue) flush() error {
	pending := q.pending
	q.pending = make([]turnFlusher, 0)

	var errs []error
	for _, f := range pending {
		if err := safeCall(f.flushTurn); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (q *TurnQueue) discard() {
	for _, f := range q.pending {
		f.discardTurn(q)
	}
	q.pending = q.pending[:0]
}
