package core

import (
	"time"

	"github.com/bianwenhui/lightning/internal/log"
)

// Supervisor is the dedicated health-check goroutine: it periodically
// checks every active core's keepalive and aborts the process if one
// has gone stale. It never mutates core state.
type Supervisor struct {
	reg  *Registry
	cfg  Config
	log  log.Logger
	stop chan struct{}
}

func newSupervisor(r *Registry, cfg Config, logger log.Logger) *Supervisor {
	return &Supervisor{reg: r, cfg: cfg, log: logger, stop: make(chan struct{})}
}

func (s *Supervisor) run() {
	ticker := time.NewTicker(s.cfg.SupervisorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.reg.Iterator(s.checkCore)
		}
	}
}

// checkCore performs the same trylock the worker uses to refresh
// keepalive; a missed lock means the worker is clearly making progress
// and is silently skipped, never treated as stuck.
func (s *Supervisor) checkCore(c *Core) {
	if !c.keepaliveMu.TryLock() {
		return
	}
	age := time.Since(c.keepalive)
	c.keepaliveMu.Unlock()
	if age <= s.cfg.SupervisorTimeout {
		return
	}
	log.Fatal("core stuck past keepalive deadline, aborting",
		log.F("core", c.Name()), log.F("hash", c.hash), log.F("age", age))
}

// Stop ends the supervisor's check loop.
func (s *Supervisor) Stop() { close(s.stop) }
