package sched

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// GoroutineID returns the id of the calling goroutine. Go has no public
// API for this; like every event-loop implementation that needs to tell
// "am I on my own loop's goroutine" apart from everything else, this
// parses the id out of the header runtime.Stack always writes first.
func GoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if bytes.HasPrefix(b, []byte(prefix)) {
		b = b[len(prefix):]
	}
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

var runningRegistry sync.Map // goroutine id (uint64) -> *Scheduler

// MarkRunning records that the calling goroutine is now running a job on
// behalf of s, and returns the goroutine id to pass to ClearRunning.
// The scheduler calls this around every job it runs, on that job's own
// goroutine.
func MarkRunning(s *Scheduler) uint64 {
	id := GoroutineID()
	runningRegistry.Store(id, s)
	return id
}

// ClearRunning undoes the effect of MarkRunning.
func ClearRunning(id uint64) {
	runningRegistry.Delete(id)
}

// CurrentScheduler reports the scheduler the calling goroutine is
// currently running a job for, if any. This is the task-path test: a
// caller for which this returns ok is "a task" and must park rather than
// block.
func CurrentScheduler() (*Scheduler, bool) {
	v, ok := runningRegistry.Load(GoroutineID())
	if !ok {
		return nil, false
	}
	return v.(*Scheduler), true
}
