package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/bianwenhui/lightning/internal/log"
)

// CoreMax is the size of the process-wide core table.
const CoreMax = 64

// Registry is the process-wide table of active cores plus the mask
// that defines membership. Both are immutable after Init returns.
type Registry struct {
	mu    sync.RWMutex
	mask  Mask
	cores [CoreMax]*Core
	cfg   Config
	log   log.Logger
	sup   *Supervisor
}

// Init validates cfg, brings up one worker per set bit of
// cfg.CoreMask, waits for every worker to signal readiness, then starts
// the health supervisor. Any bring-up failure is fatal: the registry is
// never returned half-wired.
func Init(cfg Config, logger log.Logger) (*Registry, error) {
	if cfg.CoreMask == 0 {
		cfg.CoreMask = 1
		if cfg.PollingTimeout == 0 && !cfg.Daemon {
			return nil, &FatalError{Stage: "config", Cause: fmt.Errorf("empty core mask requires a polling timeout or daemon mode")}
		}
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.MaxTasksPerCore <= 0 {
		cfg.MaxTasksPerCore = DefaultConfig().MaxTasksPerCore
	}

	r := &Registry{mask: cfg.CoreMask, cfg: cfg, log: logger}
	dense := TransMask(cfg.CoreMask)

	ready := make([]chan error, len(dense.CoreID))
	for i, idx := range dense.CoreID {
		ch := make(chan error, 1)
		ready[i] = ch
		c := newCore(idx, cfg, logger, r)
		r.mu.Lock()
		r.cores[idx] = c
		r.mu.Unlock()
		go c.worker(ch)
	}

	for i, ch := range ready {
		if err := <-ch; err != nil {
			return nil, &FatalError{Stage: fmt.Sprintf("core %d init", dense.CoreID[i]), Cause: err}
		}
	}

	r.sup = newSupervisor(r, cfg, logger)
	go r.sup.run()

	return r, nil
}

// Used reports whether core index i is active.
func (r *Registry) Used(i int) bool { return r.mask.Used(i) }

// Get returns the core at i, or ErrNotFound if i is not in the active
// mask. Callers must never fabricate indices outside Dense().
func (r *Registry) Get(i int) (*Core, error) {
	if !r.Used(i) {
		return nil, ErrNotFound
	}
	r.mu.RLock()
	c := r.cores[i]
	r.mu.RUnlock()
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// Mask returns the active core bitmask.
func (r *Registry) Mask() Mask { return r.mask }

// Dense returns the ascending list of active core indices.
func (r *Registry) Dense() CoreMask { return TransMask(r.mask) }

// Iterator walks all active cores in index order synchronously from the
// caller's own goroutine. fn must not mutate state owned by another
// core's worker; read-only aggregation is the intended use.
func (r *Registry) Iterator(fn func(c *Core)) {
	for _, idx := range r.Dense().CoreID {
		if c, err := r.Get(idx); err == nil {
			fn(c)
		}
	}
}

// DumpMemory sums a notional per-core footprint across active cores.
func (r *Registry) DumpMemory() uint64 {
	var total uint64
	r.Iterator(func(c *Core) {
		total += c.memoryFootprint()
	})
	return total
}

// Shutdown runs each active core's destroy list in reverse registration
// order and joins its worker goroutine, the cooperative teardown path
// the original never implemented.
func (r *Registry) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, idx := range r.Dense().CoreID {
		c, err := r.Get(idx)
		if err != nil {
			continue
		}
		if err := c.shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.sup.Stop()
	return firstErr
}
