// Package semaphore provides a counting semaphore whose waiters are served by
// priority, for bounding concurrency while letting urgent work jump the queue
// ahead of routine work.
//
// # Why This Package Exists
//
// A buffered channel is a fine semaphore as long as every waiter is equally
// important. Once some work is more urgent than the rest (interactive requests
// versus background jobs, retries of user-facing calls versus batch refreshes),
// a channel offers no way to let the urgent goroutine through first: whoever the
// runtime happens to wake up wins.
//
// This semaphore keeps waiters in a priority queue. When a permit is released
// while goroutines are waiting, the permit goes to the waiter with the highest
// priority. Waiters with equal priority are served in the order they arrived.
//
// # Usage
//
// Create a semaphore with a fixed number of permits, then acquire permits with a
// priority. Larger numbers are more urgent; negative priorities are allowed.
//
//	sem := semaphore.New(4)
//
//	p, err := sem.Acquire(10).Wait(ctx)
//	if err != nil {
//	    return err // ctx.Err() or ErrClosed
//	}
//	defer p.Release()
//	// ... do urgent work ...
//
// TryAcquire never blocks and never queues. It lets callers handle the "too
// busy" case themselves:
//
//	p, err := sem.TryAcquire(0)
//	if errors.Is(err, semaphore.ErrNoPermits) {
//	    // ... shed load ...
//	}
//
// Timeouts are not built in. Pass a context with a deadline to Wait; when the
// context is done, the waiter leaves the queue and no permit is lost.
//
// # Closing
//
// Close wakes every waiter with ErrClosed and makes all later acquire attempts
// fail with ErrClosed. Permits that are already held remain valid and should
// still be released. Closing twice is harmless.
//
// # Handoff
//
// Releasing a permit while goroutines are waiting does not return it to the pool
// of available permits. The slot is handed directly to the most urgent waiter,
// so a concurrent TryAcquire cannot steal it. Available therefore stays at zero
// while the queue is not empty.
//
// TryAcquire may still succeed while others are queued if a permit was returned
// to the pool before they queued up. Priorities only order the waiters that are
// queued at the same time.
//
// # Groups
//
// A Group runs subtasks in their own goroutines, each holding a permit while it
// runs, and collects the first error like errgroup does:
//
//	g, ctx := semaphore.NewGroup(ctx, sem)
//	g.Go(10, handleRequest)
//	g.Go(0, refreshCache)
//	err := g.Wait()
//
// # Polling
//
// Wait parks the calling goroutine. Callers running their own event loop can
// drive an Acquisition step by step with Poll, supplying a Waker that schedules
// the next Poll. Such callers must Cancel attempts they abandon, otherwise the
// attempt stays in the queue.
package semaphore
