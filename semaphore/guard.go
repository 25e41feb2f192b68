package semaphore

// A guard provides scoped exclusive access to a value. The value lives inside a
// one-slot channel: taking it out of the channel locks it, and putting it back
// unlocks it.
//
// Critical sections must be short and must never block or call back into
// caller-supplied code while the value is held.
type guard[T any] struct {
	slot chan T
}

func newGuard[T any](value T) guard[T] {
	g := guard[T]{slot: make(chan T, 1)}
	g.slot <- value
	return g
}

// acquire gets exclusive access to the guarded value. The returned release
// function must be called exactly once to give the value back.
func (g guard[T]) acquire() (value T, release func()) {
	value = <-g.slot
	release = func() { g.slot <- value }
	return value, release
}
