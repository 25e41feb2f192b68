package semaphore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func newLoggedSemaphore(capacity int) (*Semaphore, *bytes.Buffer) {
	var buf bytes.Buffer
	opts := NewOptions("test")
	opts.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return NewWithOptions(capacity, opts), &buf
}

func TestGuard(t *testing.T) {
	g := newGuard(new(int))

	v, release := g.acquire()
	*v = 42

	acquired := make(chan int)
	go func() {
		v, release := g.acquire()
		defer release()
		acquired <- *v
	}()

	select {
	case <-acquired:
		t.Fatal("guard was acquired twice")
	default:
	}
	release()
	assert.Equal(t, 42, <-acquired)
}

func TestOptionsDefaults(t *testing.T) {
	var zero Options
	assert.Equal(t, DefaultName, zero.Name())
	assert.NotNil(t, zero.Logger())

	opts := DefaultOptions()
	assert.Equal(t, DefaultName, opts.Name())
	opts.SetName("uploads")
	assert.Equal(t, "uploads", opts.Name())
	assert.Equal(t, "uploads", NewWithOptions(1, opts).Name())
}

// A release on a semaphore whose permits are all available would push the
// counter above capacity. It is dropped, counted and logged instead.
func TestDispatchClampsAtCapacity(t *testing.T) {
	sem, logs := newLoggedSemaphore(2)

	sem.dispatch()
	assert.Equal(t, 2, sem.Available())
	assert.Equal(t, uint64(1), sem.metrics.OverReleased.Load())
	assert.Contains(t, logs.String(), "PermitOverRelease")
	assert.Contains(t, logs.String(), "name=test")
}

func TestCloseIsLogged(t *testing.T) {
	sem, logs := newLoggedSemaphore(0)
	acq := sem.Acquire(1)
	_, done, err := acq.Poll(nil)
	require.NoError(t, err)
	require.False(t, done)

	sem.Close()
	sem.Close()
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("SemaphoreClosed")))
	assert.Contains(t, logs.String(), "drained=1")
}

func TestAcquisitionStates(t *testing.T) {
	sem, logs := newLoggedSemaphore(1)

	acq := sem.Acquire(3)
	assert.Equal(t, notQueued, acq.state)
	p, done, err := acq.Poll(nil)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, completed, acq.state, "state is %v", acq.state)
	assert.Nil(t, acq.waiter)

	waiting := sem.Acquire(7)
	_, done, err = waiting.Poll(nil)
	require.NoError(t, err)
	require.False(t, done)
	assert.Equal(t, queued, waiting.state, "state is %v", waiting.state)
	require.NotNil(t, waiting.waiter)
	assert.Equal(t, 7, waiting.waiter.priority)
	assert.True(t, waiting.waiter.queued())

	p.Release()
	assert.True(t, waiting.waiter.granted)
	assert.False(t, waiting.waiter.queued())
	assert.Contains(t, logs.String(), "PermitHandoff")

	p, done, err = waiting.Poll(nil)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, completed, waiting.state)
	p.Release()
}

func TestCancelIsLogged(t *testing.T) {
	sem, logs := newLoggedSemaphore(0)
	acq := sem.Acquire(-4)
	_, done, _ := acq.Poll(nil)
	require.False(t, done)

	acq.Cancel()
	assert.Contains(t, logs.String(), "WaiterCancelled")
	assert.Contains(t, logs.String(), "priority=-4")
	assert.Equal(t, uint64(1), sem.metrics.Cancelled.Load())
}

// Succeeding on the fast path can race with a release that hands this attempt
// a slot. Leaving the queue must then pass the unclaimed slot on rather than
// keep both.
func TestLeaveQueueAfterHandoffPassesSlotOn(t *testing.T) {
	sem := New(2)
	a, err := sem.TryAcquire(0)
	require.NoError(t, err)
	b, err := sem.TryAcquire(0)
	require.NoError(t, err)

	acq := sem.Acquire(0)
	_, done, _ := acq.Poll(nil)
	require.False(t, done)

	a.Release()
	require.True(t, acq.waiter.granted)
	assert.Equal(t, 0, sem.Available())

	w := acq.waiter
	acq.leaveQueue()
	assert.False(t, w.granted)
	assert.Equal(t, 1, sem.Available())

	b.Release()
	assert.Equal(t, 2, sem.Available())
	assert.Zero(t, sem.metrics.OverReleased.Load())
}
