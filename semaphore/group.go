package semaphore

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// A Group is a collection of goroutines working on subtasks of a common task,
// where the number of goroutines running at once is bounded by a Semaphore.
// Subtasks with a higher priority start first whenever the group is at its
// limit.
//
// Unlike errgroup.Group.SetLimit, Go never blocks the caller: every subtask gets
// its own goroutine right away, which then waits for a permit with the
// subtask's priority. This way an urgent subtask submitted last can still
// overtake routine subtasks submitted earlier.
//
// The first subtask to return a non-nil error cancels the group's context;
// subtasks that have not started yet give up without being called.
type Group struct {
	sem    *Semaphore
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewGroup returns a Group bounded by sem, along with a derived context that is
// cancelled the first time a subtask returns an error or Wait returns.
//
// Several groups may share one semaphore to enforce a common limit.
func NewGroup(ctx context.Context, sem *Semaphore) (*Group, context.Context) {
	ctx, cancel := context.WithCancelCause(ctx)
	group, ctx := errgroup.WithContext(ctx)
	return &Group{sem: sem, group: group, ctx: ctx, cancel: cancel}, ctx
}

// Go calls f in a new goroutine once a permit has been acquired with the given
// priority. The permit is released when f returns.
//
// If the semaphore is closed or the group's context is cancelled before f
// starts, f is not called and the error is reported by Wait.
func (g *Group) Go(priority int, f func(ctx context.Context) error) {
	g.group.Go(func() error {
		p, err := g.sem.Acquire(priority).Wait(g.ctx)
		if g.ctx.Err() != nil {
			// Report what cancelled the group rather than the bare context error.
			p.Release()
			return context.Cause(g.ctx)
		}
		if err != nil {
			return err
		}
		defer p.Release()
		// The context must be cancelled before the permit is passed on, so that
		// the next waiter sees the failure instead of starting.
		if err := f(g.ctx); err != nil {
			g.cancel(err)
			return err
		}
		return nil
	})
}

// Wait blocks until all subtasks started with Go have returned or given up, then
// returns the first non-nil error, if any.
func (g *Group) Wait() error {
	err := g.group.Wait()
	g.cancel(err)
	return err
}
