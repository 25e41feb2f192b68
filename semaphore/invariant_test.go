package semaphore

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

// unclaimed counts slots that were handed to waiters which have not polled for
// them yet.
func unclaimed(acqs []*Acquisition) int {
	n := 0
	for _, acq := range acqs {
		if acq.state == queued && acq.waiter.granted {
			n++
		}
	}
	return n
}

// This test drives a semaphore from a single goroutine with random operations
// and checks after every step that available permits, held permits and
// handed-off slots add up to the capacity.
func TestCapacityInvariant(t *testing.T) {
	const capacity = 3
	rng := rand.New(rand.NewPCG(0xCAFEBABE, 1))
	sem := New(capacity)

	var (
		held    []*Permit
		pending []*Acquisition
	)
	check := func(step int) {
		t.Helper()
		total := sem.Available() + len(held) + unclaimed(pending)
		require.Equal(t, capacity, total, "step %v: available=%v held=%v unclaimed=%v",
			step, sem.Available(), len(held), unclaimed(pending))
		require.LessOrEqual(t, len(held), capacity, "step %v", step)
	}

	for step := range 5000 {
		switch op := rng.IntN(5); {
		case op == 0:
			if p, err := sem.TryAcquire(rng.IntN(7)); err == nil {
				held = append(held, p)
			}
		case op == 1:
			acq := sem.Acquire(rng.IntN(7))
			if p, done, err := acq.Poll(nil); done {
				require.NoError(t, err)
				held = append(held, p)
			} else {
				pending = append(pending, acq)
			}
		case op == 2 && len(held) > 0:
			i := rng.IntN(len(held))
			held[i].Release()
			held = slices.Delete(held, i, i+1)
		case op == 3 && len(pending) > 0:
			i := rng.IntN(len(pending))
			if p, done, err := pending[i].Poll(nil); done {
				require.NoError(t, err)
				held = append(held, p)
				pending = slices.Delete(pending, i, i+1)
			}
		case op == 4 && len(pending) > 0:
			i := rng.IntN(len(pending))
			pending[i].Cancel()
			pending = slices.Delete(pending, i, i+1)
		}
		check(step)
		require.Equal(t, len(pending)-unclaimed(pending), sem.Queued(), "step %v", step)
	}
}
