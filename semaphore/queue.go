package semaphore

import (
	"container/heap"
)

// A Waker tells whoever drives an Acquisition that it is worth polling again.
//
// A Waker may be invoked more than once, and it may be invoked after the
// Acquisition has already completed; both must be harmless. Wakers are never
// invoked while the semaphore's internal lock is held.
type Waker func()

// A waiter is the queue-resident record of a suspended Acquisition.
type waiter struct {
	priority int
	// The id is unique for the lifetime of the queue. It identifies the waiter
	// for removal and breaks ties between equal priorities in arrival order.
	id uint64
	// Position in the heap, or -1 once the waiter has left the queue.
	index int
	wake  Waker
	// Set when the waiter was popped by a release: the released slot now belongs
	// to this waiter and was never returned to the counter.
	granted bool
}

func (w *waiter) queued() bool {
	return w.index >= 0
}

// waitQueue is a max-heap of waiters ordered by priority, then by arrival.
//
// The zero value is not ready to use; create queues with newWaitQueue.
type waitQueue struct {
	heap   waiterHeap
	byID   map[uint64]*waiter
	nextID uint64
}

func newWaitQueue() *waitQueue {
	return &waitQueue{byID: make(map[uint64]*waiter)}
}

// push inserts a new waiter and returns it.
func (q *waitQueue) push(priority int, wake Waker) *waiter {
	q.nextID++
	w := &waiter{
		priority: priority,
		id:       q.nextID,
		wake:     wake,
	}
	heap.Push(&q.heap, w)
	q.byID[w.id] = w
	return w
}

// pop removes and returns the most urgent waiter, or nil if the queue is empty.
func (q *waitQueue) pop() *waiter {
	if len(q.heap) == 0 {
		return nil
	}
	w := heap.Pop(&q.heap).(*waiter)
	delete(q.byID, w.id)
	return w
}

// remove takes the waiter with the given id out of the queue. Unknown ids,
// including those of waiters that were already popped, are ignored and nil is
// returned.
func (q *waitQueue) remove(id uint64) *waiter {
	w, ok := q.byID[id]
	if !ok {
		return nil
	}
	heap.Remove(&q.heap, w.index)
	delete(q.byID, id)
	return w
}

// updateWaker replaces the waker of a queued waiter without moving it. It
// reports whether the waiter was still queued.
func (q *waitQueue) updateWaker(id uint64, wake Waker) bool {
	w, ok := q.byID[id]
	if !ok {
		return false
	}
	w.wake = wake
	return true
}

// drain empties the queue and returns the waiters in priority order.
func (q *waitQueue) drain() []*waiter {
	drained := make([]*waiter, 0, len(q.heap))
	for w := q.pop(); w != nil; w = q.pop() {
		drained = append(drained, w)
	}
	return drained
}

func (q *waitQueue) len() int {
	return len(q.heap)
}

// waiterHeap implements heap.Interface. It keeps every waiter's index in sync
// with its position so that heap.Remove and heap.Fix can address it directly.
type waiterHeap []*waiter

func (h waiterHeap) Len() int { return len(h) }

func (h waiterHeap) Less(i, j int) bool {
	// Pop must return the highest priority first, so Less is "more urgent".
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].id < h[j].id
}

func (h waiterHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *waiterHeap) Push(x any) {
	w := x.(*waiter)
	w.index = len(*h)
	*h = append(*h, w)
}

func (h *waiterHeap) Pop() any {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*h = old[:n-1]
	return w
}
