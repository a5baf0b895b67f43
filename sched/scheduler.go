// Package sched implements a single-owner, run-to-completion job queue:
// exactly one goroutine (the "loop goroutine") ever calls Run, draining
// whatever work other goroutines queued through Submit since the last
// drain. It is the in-process analog of the cooperative task scheduler
// a core owns, translated from pinned-OS-thread-plus-stack-switching
// cooperative multitasking into Go's own goroutine scheduler: a task
// that needs to block is simply a goroutine that blocks, parked through
// ReserveTask/Yield/PostTask rather than stack-switched in user space.
package sched

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bianwenhui/lightning/internal/log"
)

// TaskHandle identifies a parked task slot reserved with ReserveTask.
type TaskHandle int64

type taskResult struct {
	value int
	err   error
}

// Ticket is the live handle returned by ReserveTask and consumed by
// exactly one Yield call.
type Ticket struct {
	ID TaskHandle
	ch chan taskResult
}

type job struct {
	name string
	prio int
	fn   func()
}

// Stat mirrors the counters a core's steady-state loop samples once per
// slow-path tick.
type Stat struct {
	TaskMax   int
	TaskUsed  int
	RingDepth int
}

// Scheduler is one core's cooperative task queue.
type Scheduler struct {
	name   string
	state  atomicState
	logger log.Logger

	mu    sync.Mutex
	queue []job
	spare []job

	tasksMu  sync.Mutex
	tasks    map[TaskHandle]*Ticket
	nextTask TaskHandle
	maxTasks int

	timers *Timers
	wake   waker
}

// New creates a scheduler. interrupt selects an eventfd-backed wake
// primitive (the core's POLLING flag is off) over a plain channel
// (POLLING on: the worker busy-spins and never blocks on wake).
func New(name string, maxTasks int, interrupt bool, logger log.Logger) (*Scheduler, error) {
	w, err := newWaker(interrupt)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Scheduler{
		name:     name,
		logger:   logger,
		tasks:    make(map[TaskHandle]*Ticket),
		maxTasks: maxTasks,
		timers:   NewTimers(),
		wake:     w,
	}
	s.state.Store(StateRunning)
	return s, nil
}

func (s *Scheduler) Name() string { return s.name }

// Close stops the scheduler; subsequent Submit calls fail with
// ErrClosed.
func (s *Scheduler) Close() error {
	s.state.Store(StateStopped)
	return s.wake.Close()
}

func (s *Scheduler) Closed() bool { return s.state.Load() == StateStopped }

// Submit enqueues fn for the loop goroutine's next Run call. name is
// carried only for observability; prio picks the order jobs of a single
// Run batch are dispatched in (higher first), matching submission order
// for same-priority jobs. Each job then runs on its own goroutine, so
// their execution may interleave.
func (s *Scheduler) Submit(prio int, name string, fn func()) error {
	if s.Closed() {
		return ErrClosed
	}
	s.mu.Lock()
	s.queue = append(s.queue, job{name: name, prio: prio, fn: fn})
	s.mu.Unlock()
	s.wake.Signal()
	return nil
}

// Run drains every job queued since the previous call and starts each
// one running, returning how many were dispatched. It must only ever be
// called from the scheduler's single loop goroutine.
//
// Each job runs on its own goroutine rather than inline in this call:
// that is what lets a job cooperatively block (the task path of a
// cross-core request, via Yield) without stalling the tick loop that
// dispatched it — the direct analog of the original's stack-switching
// tasks, which suspend themselves without blocking the scheduler that
// scheduled them. A same-core request is therefore deadlock-free: the
// caller's job parks on its own goroutine, Run returns, the loop
// continues to its next tick, dequeues the trampoline job, and that
// trampoline's own goroutine posts the parked caller.
func (s *Scheduler) Run() int {
	s.mu.Lock()
	batch := s.queue
	s.queue = s.spare[:0]
	s.spare = batch
	s.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].prio > batch[j].prio })

	for _, j := range batch {
		go s.runJob(j)
	}
	return len(batch)
}

func (s *Scheduler) runJob(j job) {
	id := MarkRunning(s)
	defer ClearRunning(id)
	j.fn()
}

// Scan performs slow-path bookkeeping; today that is a no-op hook kept
// for parity with the out-of-scope scheduler contract's sche_scan.
func (s *Scheduler) Scan() {}

// AddTimer schedules fn to fire from a future ExpireTimers call.
func (s *Scheduler) AddTimer(d time.Duration, fn func()) {
	s.timers.Add(d, fn)
}

// ExpireTimers runs every timer due at or before now.
func (s *Scheduler) ExpireTimers(now time.Time) int {
	return s.timers.Expire(now)
}

// ReserveTask reserves a parking slot for the calling goroutine's task,
// used by the task-path of a cross-core request. Returns ErrBusy once
// maxTasks slots are all in use; callers should treat this as retriable
// rather than fatal.
func (s *Scheduler) ReserveTask() (*Ticket, error) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	if s.maxTasks > 0 && len(s.tasks) >= s.maxTasks {
		return nil, ErrBusy
	}
	s.nextTask++
	t := &Ticket{ID: s.nextTask, ch: make(chan taskResult, 1)}
	s.tasks[t.ID] = t
	return t, nil
}

// PostTask wakes the task parked at h exactly once.
func (s *Scheduler) PostTask(h TaskHandle, value int, err error) error {
	s.tasksMu.Lock()
	t, ok := s.tasks[h]
	if ok {
		delete(s.tasks, h)
	}
	s.tasksMu.Unlock()
	if !ok {
		return ErrUnknownTask
	}
	t.ch <- taskResult{value: value, err: err}
	return nil
}

// Yield cooperatively blocks the calling task until t is posted or ctx
// is cancelled.
func (s *Scheduler) Yield(ctx context.Context, t *Ticket) (int, error) {
	select {
	case r := <-t.ch:
		return r.value, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Wake pokes the loop goroutine so it notices newly queued work without
// waiting out a polling timeout.
func (s *Scheduler) Wake() { s.wake.Signal() }

// WaitWake blocks the loop goroutine until Wake is called or timeout
// elapses (timeout <= 0 blocks indefinitely). Callers running in POLLING
// mode should not call this at all.
func (s *Scheduler) WaitWake(timeout time.Duration) bool {
	return s.wake.Wait(timeout)
}

// Stat samples the current queue depth and task-slot usage.
func (s *Scheduler) Stat() Stat {
	s.tasksMu.Lock()
	used := len(s.tasks)
	s.tasksMu.Unlock()
	s.mu.Lock()
	depth := len(s.queue)
	s.mu.Unlock()
	return Stat{TaskMax: s.maxTasks, TaskUsed: used, RingDepth: depth}
}
