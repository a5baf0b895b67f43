package core

import (
	"context"

	"github.com/bianwenhui/lightning/cpuset"
)

// shutdown signals the worker to stop, wakes it in case it is blocked
// in WaitWake, and waits for it to run its destroy list and exit.
func (c *Core) shutdown(ctx context.Context) error {
	close(c.stopCh)
	c.sched.Wake()
	select {
	case <-c.stopped:
		schedOwner.Delete(c.sched)
		if c.pinned {
			cpuset.Release(c.pinnedCPU)
			c.pinned = false
		}
		return c.sched.Close()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runDestroyList runs the destroy callbacks in reverse registration
// order, the teardown the original registers for but never invokes.
func (c *Core) runDestroyList() {
	list := c.snapshotList(&c.destroys)
	for i := len(list) - 1; i >= 0; i-- {
		list[i].fn(c, list[i].ctx)
	}
}
