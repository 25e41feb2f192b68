package semaphore

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/exp/slog"
)

var (
	// ErrNoPermits is returned by TryAcquire when every permit is in use. It is
	// transient: the caller may retry later or queue up with Acquire.
	ErrNoPermits = errors.New("semaphore: no permits available")
	// ErrClosed is returned once the semaphore has been closed. It is terminal:
	// a closed semaphore never grants another permit.
	ErrClosed = errors.New("semaphore: closed")
	// ErrCompleted is returned when polling an Acquisition that has already
	// produced its result or was cancelled.
	ErrCompleted = errors.New("semaphore: acquisition already completed")
)

// Semaphore is a counting semaphore whose waiters carry a priority. When a
// permit is released while goroutines are waiting, the waiter with the highest
// priority gets it; waiters of equal priority are served in arrival order.
//
// A Semaphore must be created with New or NewWithOptions and must not be copied
// after first use. All methods are safe for concurrent use.
type Semaphore struct {
	capacity int64
	// The number of unused permits. It is only ever changed with atomic
	// operations and stays within [0, capacity].
	permits atomic.Int64
	// Once set, the closed flag never resets. It is only set while holding the
	// waiters guard, so that no waiter can be enqueued behind a finished drain.
	closed  atomic.Bool
	waiters guard[*waitQueue]

	name    string
	logger  *slog.Logger
	metrics Metrics
}

// New creates a semaphore with the given number of permits and default options.
// It panics if capacity is negative.
func New(capacity int) *Semaphore {
	return NewWithOptions(capacity, DefaultOptions())
}

// NewWithOptions creates a semaphore with the given number of permits,
// configured by opts. It panics if capacity is negative.
func NewWithOptions(capacity int, opts Options) *Semaphore {
	if capacity < 0 {
		panic(fmt.Errorf("semaphore: negative capacity %v", capacity))
	}
	s := &Semaphore{
		capacity: int64(capacity),
		waiters:  newGuard(newWaitQueue()),
		name:     opts.Name(),
		logger:   opts.Logger(),
	}
	s.permits.Store(int64(capacity))
	return s
}

// TryAcquire takes a permit if one is immediately available. It never blocks
// and never joins the wait queue, so the priority does not affect the outcome.
//
// It returns ErrNoPermits when all permits are in use and ErrClosed when the
// semaphore has been closed. On success, the caller must Release the permit:
//
//	p, err := sem.TryAcquire(0)
//	if err != nil {
//	    // ... handle the "too busy" case ...
//	}
//	defer p.Release()
func (s *Semaphore) TryAcquire(priority int) (*Permit, error) {
	if err := s.tryAcquire(); err != nil {
		if errors.Is(err, ErrClosed) {
			s.metrics.Rejected.Add(1)
		} else {
			s.metrics.NoPermits.Add(1)
		}
		return nil, err
	}
	return s.newPermit(), nil
}

// tryAcquire is the lock-free fast path. It decrements the counter while it is
// nonzero.
func (s *Semaphore) tryAcquire() error {
	if s.closed.Load() {
		return ErrClosed
	}
	for {
		n := s.permits.Load()
		if n == 0 {
			return ErrNoPermits
		}
		if s.permits.CompareAndSwap(n, n-1) {
			return nil
		}
	}
}

// Acquire starts an attempt to take a permit with the given priority. It does
// not block; the returned Acquisition is driven either by Wait, which parks the
// calling goroutine, or by Poll for callers running their own event loop.
//
//	p, err := sem.Acquire(10).Wait(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Release()
func (s *Semaphore) Acquire(priority int) *Acquisition {
	return &Acquisition{sem: s, priority: priority}
}

// Close closes the semaphore. Every queued waiter is woken up and fails with
// ErrClosed, and every later acquire attempt fails immediately with ErrClosed.
// Permits that are already held stay valid and may still be released.
//
// Close is idempotent; only the first call has an effect.
func (s *Semaphore) Close() {
	if s.closed.Load() {
		return
	}
	queue, release := s.waiters.acquire()
	if s.closed.Swap(true) {
		release()
		return
	}
	drained := queue.drain()
	release()

	for _, w := range drained {
		w.wake()
	}
	s.logger.Info("SemaphoreClosed", "name", s.name, "drained", len(drained))
}

// Closed reports whether Close has been called.
func (s *Semaphore) Closed() bool {
	return s.closed.Load()
}

// Available returns the number of unused permits. The value is only a snapshot
// and may be stale as soon as it is returned.
func (s *Semaphore) Available() int {
	return int(s.permits.Load())
}

// Queued returns the number of waiters in the queue. Like Available, the value
// is only a snapshot.
func (s *Semaphore) Queued() int {
	queue, release := s.waiters.acquire()
	defer release()
	return queue.len()
}

// Capacity returns the number of permits the semaphore was created with.
func (s *Semaphore) Capacity() int {
	return int(s.capacity)
}

// Name returns the name the semaphore was configured with.
func (s *Semaphore) Name() string {
	return s.name
}

// Metrics returns the semaphore's activity counters.
func (s *Semaphore) Metrics() *Metrics {
	return &s.metrics
}

// String returns a human-readable representation of the semaphore's state in
// the form "Semaphore(acquired/capacity, queued=n)", with a closed marker once
// the semaphore has been closed.
func (s *Semaphore) String() string {
	acquired := s.Capacity() - s.Available()
	str := fmt.Sprintf("Semaphore(%v/%v, queued=%v", acquired, s.capacity, s.Queued())
	if s.Closed() {
		str += ", closed"
	}
	return str + ")"
}

func (s *Semaphore) newPermit() *Permit {
	s.metrics.Acquired.Add(1)
	return &Permit{sem: s}
}

// dispatch hands a released slot to the most urgent waiter, or returns it to
// the counter if nobody is waiting.
func (s *Semaphore) dispatch() {
	queue, release := s.waiters.acquire()
	next, overReleased := s.dispatchLocked(queue)
	release()
	s.afterDispatch(next, overReleased)
}

// dispatchLocked must be called while holding the waiters guard. The slot goes
// to the popped waiter without passing through the counter, so no fast-path
// caller can take it first.
//
// The counter is incremented under the guard as well: a waiter that enqueues
// right after must see the permit on its retry of the fast path.
func (s *Semaphore) dispatchLocked(queue *waitQueue) (next *waiter, overReleased bool) {
	if !s.closed.Load() {
		if w := queue.pop(); w != nil {
			w.granted = true
			s.metrics.HandedOff.Add(1)
			return w, false
		}
	}
	for {
		n := s.permits.Load()
		if n >= s.capacity {
			s.metrics.OverReleased.Add(1)
			return nil, true
		}
		if s.permits.CompareAndSwap(n, n+1) {
			return nil, false
		}
	}
}

// afterDispatch does the work of dispatchLocked that must not happen under the
// guard.
func (s *Semaphore) afterDispatch(next *waiter, overReleased bool) {
	if overReleased {
		s.logger.Warn("PermitOverRelease", "name", s.name, "capacity", s.capacity)
	}
	if next != nil {
		s.logger.Debug("PermitHandoff", "name", s.name, "priority", next.priority)
		next.wake()
	}
}

// enqueue adds a waiter unless the semaphore has been closed. Checking the flag
// under the guard is what keeps Close from missing a waiter.
func (s *Semaphore) enqueue(priority int, wake Waker) (*waiter, error) {
	queue, release := s.waiters.acquire()
	defer release()
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return queue.push(priority, wake), nil
}

// updateWaker reports whether w is still queued.
func (s *Semaphore) updateWaker(w *waiter, wake Waker) bool {
	queue, release := s.waiters.acquire()
	defer release()
	return queue.updateWaker(w.id, wake)
}

// claim takes the slot that a release handed to w, if any. If the semaphore was
// closed in the meantime, the slot is returned to the counter and ErrClosed is
// reported instead.
func (s *Semaphore) claim(w *waiter) (granted bool, err error) {
	queue, release := s.waiters.acquire()
	if !w.granted {
		release()
		return false, nil
	}
	w.granted = false
	if !s.closed.Load() {
		release()
		return true, nil
	}
	next, overReleased := s.dispatchLocked(queue)
	release()
	s.afterDispatch(next, overReleased)
	return true, ErrClosed
}

// removeWaiter takes w out of the queue. If a release already handed w a slot
// that w will never claim, the slot is passed on to the next waiter.
func (s *Semaphore) removeWaiter(w *waiter) {
	queue, release := s.waiters.acquire()
	var (
		next         *waiter
		overReleased bool
	)
	if queue.remove(w.id) == nil && w.granted {
		w.granted = false
		next, overReleased = s.dispatchLocked(queue)
	}
	release()
	s.afterDispatch(next, overReleased)
}
