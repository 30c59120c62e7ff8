package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrRecursionLimit is matched by every *RecursionError.
	ErrRecursionLimit = errors.New("bind: recursion limit exceeded")

	ErrReadOnly          = errors.New("bind: observer is read-only")
	ErrFlushLimit        = errors.New("bind: flush did not settle")
	ErrReentrantYield    = errors.New("bind: yield called from a running task")
	ErrDisposed          = errors.New("bind: disposed")
	ErrUnsupportedObject = errors.New("bind: object cannot be observed")
	ErrNoSuchProperty    = errors.New("bind: no such property")
	ErrTypeMismatch      = errors.New("bind: value type does not match property")
)

// RecursionError is returned when an effect or a watcher keeps re-triggering itself.
type RecursionError struct {
	Limit int
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("bind: re-ran more than %d times without settling", e.Limit)
}

func (e *RecursionError) Is(target error) bool {
	return target == ErrRecursionLimit
}

// NotificationError wraps the failure of a single subscriber.
type NotificationError struct {
	Subscriber any
	Err        error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("bind: subscriber %T failed: %v", e.Subscriber, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// TaskError wraps the failure of a scheduled task.
type TaskError struct {
	ID   uint64
	Lane Lane
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("bind: %s task %d failed: %v", e.Lane, e.ID, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// PanicError carries a recovered panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// safeCall runs fn, turning a panic into a *PanicError.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	return fn()
}
