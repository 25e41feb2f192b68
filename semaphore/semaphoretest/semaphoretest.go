// Package semaphoretest provides utilities for testing code built on priority
// semaphores. It verifies the two promises of the semaphore package: no more
// permits are ever held than the semaphore's capacity, and queued waiters are
// served by priority, then by arrival.
//
// # Example Usage
//
// Verify the order in which queued jobs obtain their permits:
//
//	sem := semaphore.New(1)
//	order := semaphoretest.Test(t, sem, []semaphoretest.Job{
//		{Token: "batch", Priority: 1},
//		{Token: "interactive", Priority: 10},
//	})
//	// order is [interactive batch]
//
// Hammer a semaphore from many goroutines and check its capacity holds:
//
//	peak := semaphoretest.Run(t, sem, jobs)
package semaphoretest

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gocmp "github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/notorious-go/sync/semaphore"
)

// Job is a unit of work that runs while holding one permit.
type Job struct {
	// Token identifies the job in the recorded acquisition order.
	Token string
	// Priority is passed to Semaphore.Acquire.
	Priority int
	// Hold is how long the job keeps its permit. Zero releases it right away.
	Hold time.Duration
}

// Expected returns the tokens of jobs in the order a semaphore serves them when
// all of them are queued at once, in slice order: by descending priority, then
// by position in the slice.
func Expected(jobs []Job) []string {
	sorted := slices.Clone(jobs)
	slices.SortStableFunc(sorted, func(a, b Job) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	tokens := make([]string, len(sorted))
	for i, job := range sorted {
		tokens[i] = job.Token
	}
	return tokens
}

// Test checks that the queued jobs obtain permits in priority order.
//
// The function:
//
//   - Takes every permit of sem, so that all jobs have to queue.
//   - Starts one goroutine per job in slice order, waiting for each to join the
//     queue before starting the next, so that arrival order is the slice order.
//   - Releases a single permit. Each job records its token and releases its
//     permit, which hands the slot to the next waiter, one job at a time.
//   - Compares the recorded order against Expected and releases the remaining
//     permits.
//
// The semaphore must have a nonzero capacity, no permits held and nobody queued.
// Test returns the recorded order.
func Test(t *testing.T, sem *semaphore.Semaphore, jobs []Job) []string {
	t.Helper()
	if sem.Capacity() == 0 {
		t.Fatalf("%v has no permits to hand out", sem)
	}

	held := make([]*semaphore.Permit, 0, sem.Capacity())
	for range sem.Capacity() {
		p, err := sem.TryAcquire(0)
		if err != nil {
			t.Fatalf("taking all permits of %v: %v", sem, err)
		}
		held = append(held, p)
	}

	var (
		mu     sync.Mutex
		tokens []string
		wg     sync.WaitGroup
	)
	for i, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := sem.Acquire(job.Priority).Wait(t.Context())
			if err != nil {
				t.Errorf("job %v: %v", job.Token, err)
				return
			}
			defer p.Release()

			mu.Lock()
			tokens = append(tokens, job.Token)
			mu.Unlock()
			time.Sleep(job.Hold)
		}()
		WaitQueued(t, sem, i+1)
	}

	held[0].Release()
	wg.Wait()
	for _, p := range held[1:] {
		p.Release()
	}

	if diff := gocmp.Diff(Expected(jobs), tokens); diff != "" {
		t.Errorf("acquisition order mismatch (-want +got):\n%s", diff)
	}
	return tokens
}

// Run executes all jobs concurrently, each holding a permit of sem while it
// runs, and returns the highest number of jobs that ran at the same time. It
// reports a test error if that number ever exceeds the semaphore's capacity, or
// if any job fails to acquire its permit.
func Run(t *testing.T, sem *semaphore.Semaphore, jobs []Job) (peak int64) {
	t.Helper()

	var inFlight, maxInFlight atomic.Int64
	var g errgroup.Group
	for _, job := range jobs {
		g.Go(func() error {
			p, err := sem.Acquire(job.Priority).Wait(t.Context())
			if err != nil {
				return err
			}
			defer p.Release()

			now := inFlight.Add(1)
			for {
				prev := maxInFlight.Load()
				if now <= prev || maxInFlight.CompareAndSwap(prev, now) {
					break
				}
			}
			time.Sleep(job.Hold)
			inFlight.Add(-1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Errorf("running jobs on %v: %v", sem, err)
	}

	peak = maxInFlight.Load()
	if peak > int64(sem.Capacity()) {
		t.Errorf("%v jobs held permits at once, capacity is %v", peak, sem.Capacity())
	}
	return peak
}

// WaitQueued blocks until exactly n waiters are queued on sem. It fails the test
// if the test's context is done first.
func WaitQueued(t *testing.T, sem *semaphore.Semaphore, n int) {
	t.Helper()

	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for sem.Queued() != n {
		select {
		case <-tick.C:
		case <-t.Context().Done():
			t.Fatalf("waiting for %v queued waiters, have %v", n, sem.Queued())
		}
	}
}
