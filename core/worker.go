package core

import (
	"fmt"
	"runtime"
	"time"

	"github.com/bianwenhui/lightning/analysis"
	"github.com/bianwenhui/lightning/cpuset"
	"github.com/bianwenhui/lightning/internal/log"
	"github.com/bianwenhui/lightning/memring"
	"github.com/bianwenhui/lightning/netfab"
	"github.com/bianwenhui/lightning/sched"
)

func newCore(hash int, cfg Config, logger log.Logger, reg *Registry) *Core {
	flag := Flag(0)
	if cfg.PollingTimeout == 0 {
		flag = FlagPolling
	}
	return &Core{
		hash:    hash,
		name:    fmt.Sprintf("core%d", hash),
		flag:    flag,
		reg:     reg,
		cfg:     cfg,
		log:     logger,
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// worker performs bring-up on its own dedicated goroutine in the order
// the runtime's worker-initialization contract requires, signals
// readiness on ready, then runs the steady-state loop until Shutdown.
func (c *Core) worker(ready chan<- error) {
	// Install core_self for this thread and the core's own identity.
	gid := registerWorkerGoroutine(c)
	defer unregisterWorkerGoroutine(gid)

	runtime.LockOSThread()

	// Only daemon mode locks a physical CPU at all; the POLLING flag is
	// not consulted (fastTestConfig leaves Daemon false, so tests other
	// than the daemon-mode one never contend over cpuset state).
	if c.cfg.Daemon {
		if cpuID, pinned := c.physicalCPU(); pinned {
			if err := cpuset.Pin(cpuID); err != nil {
				ready <- &FatalError{Stage: "cpu pin", Cause: err}
				return
			}
			c.pinnedCPU = cpuID
			c.pinned = true
		}
	}

	if c.cfg.Daemon && c.cfg.UseHuge {
		pool, err := memring.NewPool(c.hash)
		if err != nil {
			ready <- &FatalError{Stage: "hugepage arena", Cause: err}
			return
		}
		c.TLSSet(TLSHugepage, pool)
	}

	sch, err := sched.New(c.Name(), c.cfg.MaxTasksPerCore, c.cfg.PollingTimeout > 0, c.log)
	if err != nil {
		ready <- &FatalError{Stage: "scheduler create", Cause: err}
		return
	}
	c.sched = sch
	schedOwner.Store(sch, c)
	c.TLSSet(TLSSchedule, sch)

	c.TLSSet(TLSSlabStream, memring.NewStreamPool())
	c.TLSSet(TLSSlabStatic, memring.NewStaticPool())
	if c.cfg.Daemon {
		c.TLSSet(TLSMemRing, memring.NewRing(c.hash, 4096))
	}

	c.net = netfab.NewTable()

	now := time.Now()
	c.keepalive = now
	c.lastScan = now
	c.statT1 = now

	if c.cfg.PerformanceAnalysis {
		c.analysisSink = analysis.NewSink()
	}

	ready <- nil

	for {
		select {
		case <-c.stopCh:
			c.runDestroyList()
			close(c.stopped)
			return
		default:
		}
		c.tick()
		if c.flag&FlagPolling == 0 {
			c.sched.WaitWake(c.cfg.PollingTimeout)
		}
	}
}

// physicalCPU reports which physical CPU id this core should pin to.
// The default one-to-one mapping (core hash == CPU id) is used; a
// deployment that needs a different mapping can wrap Registry.
func (c *Core) physicalCPU() (int, bool) {
	return c.hash, true
}

// tick is core_worker_run: one steady-state iteration, in the order
// §4.3 of the runtime's own design fixes.
func (c *Core) tick() {
	c.statNR2++

	c.sched.Run()
	c.runList(c.snapshotList(&c.pollers))

	c.sched.Run()
	c.runList(c.snapshotList(&c.routines))

	now := time.Now()
	if now.Sub(c.lastScan) > c.cfg.ScanInterval {
		c.lastScan = now
		c.runList(c.snapshotList(&c.scans))
		if now.Sub(c.keepalive) >= c.cfg.KeepaliveInterval {
			c.refreshKeepalive(now)
		}
		c.sched.Scan()
		c.emitStats(now)
	}

	c.sched.ExpireTimers(now)

	if c.analysisSink != nil {
		c.analysisSink.Flush()
	}
}

func (c *Core) snapshotList(list *[]routine) []routine {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	return append([]routine(nil), (*list)...)
}

func (c *Core) runList(list []routine) {
	for _, r := range list {
		r.fn(c, r.ctx)
	}
}

// refreshKeepalive mirrors the keepalive discipline: a trylock shared
// with the supervisor, a missed lock is acceptable and simply skipped.
func (c *Core) refreshKeepalive(now time.Time) {
	if !c.keepaliveMu.TryLock() {
		return
	}
	c.keepalive = now
	c.keepaliveMu.Unlock()
}

func (c *Core) emitStats(now time.Time) {
	used := now.Sub(c.statT1)
	var pps float64
	if used > 0 {
		pps = float64(c.statNR2-c.statNR1) * float64(time.Second) / float64(used)
	}
	st := c.sched.Stat()
	c.log.Log(log.Entry{
		Level:   log.LevelInfo,
		Message: "core stats",
		Fields: map[string]interface{}{
			"core":      c.Name(),
			"hash":      c.hash,
			"pps":       pps,
			"task_max":  st.TaskMax,
			"task_used": st.TaskUsed,
			"ring":      st.RingDepth,
		},
	})
	c.statT1 = now
	c.statNR1 = c.statNR2
}
