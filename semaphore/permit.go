package semaphore

import (
	"fmt"
	"sync/atomic"
)

// A Permit proves that its holder owns one slot of a Semaphore. The slot is
// given back by calling Release, typically deferred right after the permit was
// obtained so that it is returned on every exit path, panics included.
//
// A Permit must not be copied; pass the pointer around instead.
type Permit struct {
	sem *Semaphore
	// A permit must be released only once. Without this flag, releasing twice
	// would hand out a slot that is still in use.
	released atomic.Bool
}

// Release returns the slot to the semaphore. If goroutines are waiting, the slot
// goes directly to the one with the highest priority.
//
// Release is safe to call multiple times and on a nil Permit; only the first
// call on a non-nil Permit has an effect.
func (p *Permit) Release() {
	if p == nil || p.released.Swap(true) {
		return
	}
	p.sem.dispatch()
}

// String describes the permit and the semaphore it belongs to.
func (p *Permit) String() string {
	if p == nil {
		return "Permit(nil)"
	}
	state := "held"
	if p.released.Load() {
		state = "released"
	}
	return fmt.Sprintf("Permit(%s, %s)", p.sem.name, state)
}
