package core

import (
	"context"
	"errors"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/bianwenhui/lightning/sched"
)

// Exec is the function a cross-core request runs on the target core's
// scheduler.
type Exec func(c *Core) (int, error)

// Request submits fn to run on the core at hash and returns its result.
// Exactly one of two completion paths is used, chosen by inspecting the
// calling goroutine's own execution context at submission time:
//
//   - Task path: the caller is itself running as a task inside some
//     core's scheduler (possibly the target's own). It parks on its own
//     scheduler and yields; this is deadlock-free even for a self
//     request, since the caller parks on its own job goroutine rather
//     than the tick loop, and the ticket's buffered channel accepts the
//     trampoline's post whether or not the caller has reached Yield.
//   - Semaphore path: the caller is a foreign goroutine with no task to
//     park. It blocks on a channel instead. If the foreign goroutine is
//     itself a core worker, it periodically re-enters its own tick
//     while waiting, so a core worker that calls Request synchronously
//     can never starve its own loop.
func (r *Registry) Request(ctx context.Context, hash int, name string, fn Exec) (int, error) {
	target, err := r.Get(hash)
	if err != nil {
		return 0, err
	}

	if callerSched, ok := sched.CurrentScheduler(); ok {
		return requestTaskPath(ctx, callerSched, target, name, fn)
	}
	return requestSemaphorePath(ctx, target, name, fn)
}

func requestTaskPath(ctx context.Context, caller *sched.Scheduler, target *Core, name string, fn Exec) (int, error) {
	ticket, err := caller.ReserveTask()
	if err != nil {
		return 0, mapRequestErr(err)
	}
	err = target.sched.Submit(0, name, func() {
		v, execErr := fn(target)
		_ = caller.PostTask(ticket.ID, v, execErr)
	})
	if err != nil {
		return 0, mapRequestErr(err)
	}
	return caller.Yield(ctx, ticket)
}

func requestSemaphorePath(ctx context.Context, target *Core, name string, fn Exec) (int, error) {
	type result struct {
		value int
		err   error
	}
	done := make(chan result, 1)
	if err := target.sched.Submit(0, name, func() {
		v, err := fn(target)
		done <- result{v, err}
	}); err != nil {
		return 0, mapRequestErr(err)
	}

	self, isWorker := Self()
	if !isWorker {
		select {
		case r := <-done:
			return r.value, r.err
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	// Self-service pump: a core worker blocked on its own semaphore-path
	// request must keep servicing its own tick, or a request that
	// happens to target its own core (or depends on it transitively)
	// deadlocks the process.
	const pumpInterval = 10 * time.Microsecond
	timer := time.NewTimer(pumpInterval)
	defer timer.Stop()
	for {
		select {
		case r := <-done:
			return r.value, r.err
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timer.C:
			self.tick()
			timer.Reset(pumpInterval)
		}
	}
}

// RequestRetry is Request paced by limiter: a caller that keeps hitting
// ErrBusy (its own scheduler's task table is full) backs off instead of
// retrying in a tight loop,
// the Go analog of the USLEEP_RETRY idiom the original uses at its own
// call sites.
func (r *Registry) RequestRetry(ctx context.Context, hash int, name string, fn Exec, limiter *catrate.Limiter) (int, error) {
	for {
		v, err := r.Request(ctx, hash, name, fn)
		if err == nil || !errors.Is(err, ErrBusy) {
			return v, err
		}
		if limiter != nil {
			if _, ok := limiter.Allow(hash); !ok {
				return 0, err
			}
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// InitModules submits the same call to every active core, sequentially,
// aborting on the first non-nil error.
func (r *Registry) InitModules(ctx context.Context, name string, fn Exec) error {
	for _, idx := range r.Dense().CoreID {
		if _, err := r.Request(ctx, idx, name, fn); err != nil {
			return err
		}
	}
	return nil
}

// InitModulesMask restricts InitModules to a sub-mask, which must be
// contained in the active mask.
func (r *Registry) InitModulesMask(ctx context.Context, name string, mask Mask, fn Exec) error {
	if mask&^r.mask != 0 {
		return errors.New("core: sub-mask not contained in active mask")
	}
	for _, idx := range TransMask(mask).CoreID {
		if _, err := r.Request(ctx, idx, name, fn); err != nil {
			return err
		}
	}
	return nil
}
