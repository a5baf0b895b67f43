package core

import (
	"fmt"
	"sync"

	"github.com/bianwenhui/lightning/sched"
)

var workerRegistry sync.Map // goroutine id (uint64) -> *Core

// schedOwner maps a core's scheduler back to the Core that owns it, so
// Self can recognize a task goroutine dispatched by that scheduler (not
// just the tick-loop goroutine itself) as running "on" that core — the
// same thing the original's single-OS-thread-per-core model gives for
// free, since every task a core schedules shares its worker's thread.
var schedOwner sync.Map // *sched.Scheduler -> *Core

func registerWorkerGoroutine(c *Core) uint64 {
	id := sched.GoroutineID()
	workerRegistry.Store(id, c)
	return id
}

func unregisterWorkerGoroutine(id uint64) {
	workerRegistry.Delete(id)
}

// Self returns the core owned by the calling goroutine, and whether the
// calling goroutine is in fact a core worker or a task dispatched by one.
// Foreign goroutines get (nil, false), the direct analog of core_self()
// returning null.
func Self() (*Core, bool) {
	if v, ok := workerRegistry.Load(sched.GoroutineID()); ok {
		return v.(*Core), true
	}
	if s, ok := sched.CurrentScheduler(); ok {
		if v, ok := schedOwner.Load(s); ok {
			return v.(*Core), true
		}
	}
	return nil, false
}

// localNodeID is this process's single-node identity. No cluster
// membership protocol is in scope for this runtime; multi-node identity
// resolution is left as the one named-interface-only collaborator, the
// same way service discovery is out of scope.
var localNodeID uint64 = 1

// ID is a core's globally routable identity.
type ID struct {
	Node uint64
	Core int
}

// ID returns this core's node/core identity pair.
func (c *Core) ID() ID { return ID{Node: localNodeID, Core: c.hash} }

// IsLocal reports whether nid names this process's own node.
func IsLocal(nid uint64) bool { return nid == localNodeID }

// RName returns a short display name for a node id, the identity
// contract's network_rname: a single-node deployment has nothing to
// resolve beyond "is this me", so foreign ids are rendered generically.
func RName(nid uint64) string {
	if IsLocal(nid) {
		return "local"
	}
	return fmt.Sprintf("node-%d", nid)
}

// Occupy appends a role suffix to the core's display name, recording
// that some subsystem has claimed this core for a purpose (e.g. all
// RPC-handling cores get "|rpc" appended).
func (c *Core) Occupy(role string) {
	c.nameMu.Lock()
	c.name = c.name + "|" + role
	c.nameMu.Unlock()
}
