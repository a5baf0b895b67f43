package sched

import "sync/atomic"

// State is a scheduler's lifecycle stage.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// atomicState is an atomic state cell. A scheduler only
// ever moves forward: created -> running -> stopped.
type atomicState struct {
	v atomic.Int32
}

func (a *atomicState) Load() State { return State(a.v.Load()) }

func (a *atomicState) Store(s State) { a.v.Store(int32(s)) }

func (a *atomicState) CAS(old, new State) bool {
	return a.v.CompareAndSwap(int32(old), int32(new))
}
