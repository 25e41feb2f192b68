package semaphore

import (
	"context"
	"errors"
)

type acquisitionState int

const (
	notQueued acquisitionState = iota
	queued
	completed
)

func (st acquisitionState) String() string {
	switch st {
	case notQueued:
		return "not-queued"
	case queued:
		return "queued"
	case completed:
		return "completed"
	}
	return "unknown"
}

// An Acquisition is a single attempt to take a permit from a Semaphore. It is
// created by Semaphore.Acquire and moves through three states: it starts out
// not queued, joins the semaphore's wait queue when no permit is available, and
// completes once it produces a permit, fails with ErrClosed, or is cancelled.
//
// Most callers simply block in Wait:
//
//	acq := sem.Acquire(priority)
//	p, err := acq.Wait(ctx)
//
// Callers that multiplex many attempts in their own event loop may drive the
// attempt with Poll instead, and must call Cancel if they give up on it.
//
// An Acquisition is not safe for concurrent use. It must be driven by one
// goroutine at a time.
type Acquisition struct {
	sem      *Semaphore
	priority int
	state    acquisitionState
	// The waiter is set while the state is queued.
	waiter *waiter
}

// Priority returns the priority the attempt was started with.
func (a *Acquisition) Priority() int {
	return a.priority
}

// Poll advances the attempt without blocking.
//
// When the attempt finishes, Poll returns done=true along with either a permit
// or ErrClosed. Otherwise the attempt is queued and Poll returns done=false; the
// given waker is invoked once a permit may be available, after which Poll should
// be called again. The waker passed to the latest Poll replaces earlier ones.
//
// Polling a completed attempt returns done=true and ErrCompleted.
func (a *Acquisition) Poll(wake Waker) (p *Permit, done bool, err error) {
	if a.state == completed {
		return nil, true, ErrCompleted
	}
	if wake == nil {
		wake = func() {}
	}

	for {
		if a.state == queued {
			granted, err := a.sem.claim(a.waiter)
			if granted {
				if err != nil {
					return a.fail(err)
				}
				return a.succeed()
			}
		}

		err := a.sem.tryAcquire()
		if err == nil {
			a.leaveQueue()
			return a.succeed()
		}
		// Close may have drained the queue between the fast path and this check;
		// the flag is read again so that this attempt never waits on a closed
		// semaphore.
		if errors.Is(err, ErrClosed) || a.sem.Closed() {
			a.leaveQueue()
			return a.fail(ErrClosed)
		}

		if a.state == queued {
			if a.sem.updateWaker(a.waiter, wake) {
				return nil, false, nil
			}
			// The waiter left the queue since the check above, either by a handoff
			// or a drain. The next iteration finds out which.
			continue
		}

		w, err := a.sem.enqueue(a.priority, wake)
		if err != nil {
			return a.fail(err)
		}
		a.waiter = w
		a.state = queued
		// A permit may have been released between the failed fast path and the
		// enqueue, so try again before suspending.
	}
}

// Wait blocks until the attempt produces a permit, the semaphore is closed, or
// ctx is done. If ctx is done first, the attempt is cancelled and ctx.Err() is
// returned. As with golang.org/x/sync/semaphore, Wait may still succeed without
// blocking when ctx is already done.
func (a *Acquisition) Wait(ctx context.Context) (*Permit, error) {
	wakeup := make(chan struct{}, 1)
	wake := func() {
		select {
		case wakeup <- struct{}{}:
		default:
		}
	}

	for {
		p, done, err := a.Poll(wake)
		if done {
			return p, err
		}
		select {
		case <-wakeup:
		case <-ctx.Done():
			a.Cancel()
			return nil, ctx.Err()
		}
	}
}

// Cancel abandons the attempt. A queued attempt leaves the wait queue, and a
// slot that was already handed to it is passed on to the next waiter. Cancel is
// a no-op for completed attempts, so it is safe to defer.
func (a *Acquisition) Cancel() {
	if a.state == queued {
		a.sem.removeWaiter(a.waiter)
		a.sem.metrics.Cancelled.Add(1)
		a.sem.logger.Debug("WaiterCancelled", "name", a.sem.name, "priority", a.priority)
	}
	a.complete()
}

func (a *Acquisition) leaveQueue() {
	if a.state == queued {
		a.sem.removeWaiter(a.waiter)
	}
}

func (a *Acquisition) succeed() (*Permit, bool, error) {
	a.complete()
	return a.sem.newPermit(), true, nil
}

func (a *Acquisition) fail(err error) (*Permit, bool, error) {
	a.complete()
	a.sem.metrics.Rejected.Add(1)
	return nil, true, err
}

func (a *Acquisition) complete() {
	a.state = completed
	a.waiter = nil
}
