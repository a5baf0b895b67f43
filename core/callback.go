package core

import "fmt"

// RoutineFunc is a poller/routine/scan/destroy callback. ctx is whatever
// was passed at registration time.
type RoutineFunc func(c *Core, ctx interface{})

type routine struct {
	name string
	fn   RoutineFunc
	ctx  interface{}
}

// RegisterPoller installs a latency-sensitive, every-tick callback onto
// c's poller list. Must be called from within c's own worker goroutine
// or a job dispatched by c's scheduler.
func (c *Core) RegisterPoller(name string, fn RoutineFunc, ctx interface{}) error {
	return c.register(&c.pollers, name, fn, ctx)
}

// RegisterRoutine installs an every-tick callback, run after pollers.
func (c *Core) RegisterRoutine(name string, fn RoutineFunc, ctx interface{}) error {
	return c.register(&c.routines, name, fn, ctx)
}

// RegisterScan installs a ≥ScanInterval-cadence housekeeping callback.
func (c *Core) RegisterScan(name string, fn RoutineFunc, ctx interface{}) error {
	return c.register(&c.scans, name, fn, ctx)
}

// RegisterDestroy installs a teardown callback, run in reverse
// registration order by Shutdown.
func (c *Core) RegisterDestroy(name string, fn RoutineFunc, ctx interface{}) error {
	return c.register(&c.destroys, name, fn, ctx)
}

// register is append-only: there is no deregistration API, matching the
// runtime's process-lifetime-static callback lists.
func (c *Core) register(list *[]routine, name string, fn RoutineFunc, ctx interface{}) error {
	self, ok := Self()
	if !ok || self != c {
		return fmt.Errorf("core: %s must be registered from within %s's own worker", name, c.Name())
	}
	c.cbMu.Lock()
	*list = append(*list, routine{name: name, fn: fn, ctx: ctx})
	c.cbMu.Unlock()
	return nil
}

// RegisterPoller registers onto the calling goroutine's own core.
func RegisterPoller(name string, fn RoutineFunc, ctx interface{}) error {
	c, ok := Self()
	if !ok {
		return ErrNotFound
	}
	return c.RegisterPoller(name, fn, ctx)
}

// RegisterRoutine registers onto the calling goroutine's own core.
func RegisterRoutine(name string, fn RoutineFunc, ctx interface{}) error {
	c, ok := Self()
	if !ok {
		return ErrNotFound
	}
	return c.RegisterRoutine(name, fn, ctx)
}

// RegisterScan registers onto the calling goroutine's own core.
func RegisterScan(name string, fn RoutineFunc, ctx interface{}) error {
	c, ok := Self()
	if !ok {
		return ErrNotFound
	}
	return c.RegisterScan(name, fn, ctx)
}

// RegisterDestroy registers onto the calling goroutine's own core.
func RegisterDestroy(name string, fn RoutineFunc, ctx interface{}) error {
	c, ok := Self()
	if !ok {
		return ErrNotFound
	}
	return c.RegisterDestroy(name, fn, ctx)
}
