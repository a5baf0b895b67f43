package core

import (
	"errors"
	"fmt"

	"github.com/bianwenhui/lightning/sched"
)

var (
	// ErrBusy surfaces a task-slot exhaustion on the caller's own
	// scheduler during a cross-core request. Retriable: see
	// Registry.RequestRetry.
	ErrBusy = errors.New("core: no free task slot")
	// ErrNotFound is returned by Get/Request/Attach for a core index
	// outside the active mask.
	ErrNotFound = errors.New("core: not used")
	// ErrSchedulerClosed is returned when a target core's scheduler has
	// already been closed by Shutdown.
	ErrSchedulerClosed = errors.New("core: scheduler closed")
	// ErrUnreachable is returned by Request when submission to the
	// target core's scheduler fails outright (e.g. it has already shut
	// down) rather than being accepted and later failing.
	ErrUnreachable = errors.New("core: target core unreachable")
)

// mapRequestErr translates a sched-level submission error into the
// core-level sentinel Request's callers are documented to see, wrapping
// rather than replacing so errors.Is still matches the underlying sched
// sentinel too.
func mapRequestErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sched.ErrBusy):
		return fmt.Errorf("%w: %w", ErrBusy, err)
	case errors.Is(err, sched.ErrClosed):
		return fmt.Errorf("%w: %w: %w", ErrSchedulerClosed, ErrUnreachable, err)
	default:
		return err
	}
}

// FatalError wraps an unrecoverable initialization fault. Init returns
// it instead of a Registry, so the caller never gets a partial fleet;
// Init itself neither logs it nor exits the process.
type FatalError struct {
	Stage string
	Cause error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("core: fatal during %s: %v", e.Stage, e.Cause)
}

func (e *FatalError) Unwrap() error { return e.Cause }
