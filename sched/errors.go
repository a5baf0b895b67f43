package sched

import "errors"

var (
	// ErrBusy is returned by ReserveTask when a scheduler has no free
	// parking slots. Callers should treat it as retriable.
	ErrBusy = errors.New("sched: no free task slot")
	// ErrClosed is returned by Submit once the scheduler has stopped.
	ErrClosed = errors.New("sched: scheduler closed")
	// ErrUnknownTask is returned by PostTask for an already-posted or
	// unrecognized handle.
	ErrUnknownTask = errors.New("sched: unknown task handle")
)
