package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrApplierStopped is returned by Do after Stop.
var ErrApplierStopped = errors.New("selection applier stopped")

// Applier runs updates from many goroutines one at a time on a single
// goroutine, so every observer of the bus sees events in Seq order and ends
// on the state Get returns. Observers still run synchronously inside the
// update and may call Set on the bus directly; they must not call Do.
type Applier struct {
	bus      *Bus
	jobs     chan *applyJob
	done     chan struct{}
	stopOnce sync.Once
}

type applyJob struct {
	fn       func(*Bus)
	err      error
	finished chan struct{}
}

// NewApplier starts the update goroutine for b. Call Stop to end it.
func NewApplier(b *Bus) *Applier {
	a := &Applier{
		bus:  b,
		jobs: make(chan *applyJob),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

// Bus returns the bus the applier updates.
func (a *Applier) Bus() *Bus { return a.bus }

// Do runs fn with the bus on the update goroutine and waits until it and
// every observer it triggered have returned. A panic in fn or an observer is
// returned as an error. If ctx ends after fn was handed over, fn still runs
// to completion.
func (a *Applier) Do(ctx context.Context, fn func(*Bus)) error {
	select {
	case <-a.done:
		return ErrApplierStopped
	default:
	}

	job := &applyJob{fn: fn, finished: make(chan struct{})}
	select {
	case a.jobs <- job:
	case <-a.done:
		return ErrApplierStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-job.finished:
		return job.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the update goroutine once the running update, if any, returns.
// Calling it again is a no-op.
func (a *Applier) Stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

func (a *Applier) run() {
	for {
		select {
		case job := <-a.jobs:
			a.apply(job)
		case <-a.done:
			return
		}
	}
}

func (a *Applier) apply(job *applyJob) {
	defer close(job.finished)
	defer func() {
		if r := recover(); r != nil {
			job.err = fmt.Errorf("selection update panicked: %v", r)
		}
	}()
	job.fn(a.bus)
}
