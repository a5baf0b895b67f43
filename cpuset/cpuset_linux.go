//go:build linux

package cpuset

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks cpu id for the exclusive use of this core, then binds the
// calling OS thread to it. Callers must have already called
// runtime.LockOSThread, since affinity otherwise applies to whichever
// thread the Go scheduler happens to run this goroutine on next.
func Pin(id int) error {
	if err := Lock(id); err != nil {
		return err
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(id)
	runtime.LockOSThread()
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		Release(id)
		return err
	}
	return nil
}
