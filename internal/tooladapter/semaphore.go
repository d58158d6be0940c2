package tooladapter

import "context"

// Semaphore caps concurrent external-tool subprocesses, spec.md §5
// "unbounded concurrency is disallowed". A plain buffered channel rather
// than golang.org/x/sync/semaphore — the teacher avoids exotic
// concurrency primitives in favor of plain channels everywhere else, and
// a fixed-size counting semaphore needs nothing the weighted variant
// offers.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore returns a Semaphore allowing up to n concurrent holders.
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is canceled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired via Acquire.
func (s *Semaphore) Release() {
	<-s.slots
}
