package internal

import "errors"

type batchFlusher interface {
	flushBatch() error
}

type Batcher struct {
	// each nested batch increases the depth by 1
	// if depth > 0, notifications are queued until the outermost batch is complete
	depth int

	pending []batchFlusher
}

func NewBatcher() *Batcher {
	return &Batcher{
		depth: 0,
	}
}

func (b *Batcher) IsBatching() bool {
	return b.depth > 0
}

func (b *Batcher) Enqueue(f batchFlusher) {
	b.pending = append(b.pending, f)
}

// Run runs fn as a batch and reports whether it was the outermost one,
// in which case the caller flushes.
func (b *Batcher) Run(fn func()) bool {
	b.depth++
	func() {
		defer func() { b.depth-- }()
		fn()
	}()

	return b.depth == 0
}

func (b *Batcher) flush() error {
	var errs []error

	for len(b.pending) > 0 {
		pending := b.pending
		b.pending = nil

		for _, f := range pending {
			if err := f.flushBatch(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}
