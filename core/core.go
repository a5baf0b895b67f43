// Package core implements the per-CPU run-to-completion runtime: a
// core registry keyed by bitmask, one worker goroutine per active core
// running a steady-state tick, a cross-core request protocol with two
// completion paths, callback registries, typed per-core storage, and a
// health supervisor.
package core

import (
	"sync"
	"time"

	"github.com/bianwenhui/lightning/analysis"
	"github.com/bianwenhui/lightning/internal/log"
	"github.com/bianwenhui/lightning/netfab"
	"github.com/bianwenhui/lightning/sched"
)

// Flag is a per-core bitset.
type Flag uint32

// FlagPolling marks a core as busy-spin rather than interrupt-driven.
const FlagPolling Flag = 1 << 0

// Core is the canonical per-CPU record: one pinned worker goroutine and
// everything private to a single logical CPU.
type Core struct {
	hash int
	flag Flag
	reg  *Registry
	cfg  Config
	log  log.Logger

	nameMu sync.Mutex
	name   string

	sched *sched.Scheduler
	net   *netfab.Table

	pinned    bool
	pinnedCPU int

	cbMu     sync.Mutex
	pollers  []routine
	routines []routine
	scans    []routine
	destroys []routine

	keepaliveMu sync.Mutex
	keepalive   time.Time
	lastScan    time.Time

	statT1  time.Time
	statNR1 uint64
	statNR2 uint64

	tls tlsSlots

	analysisSink *analysis.Sink

	stopCh  chan struct{}
	stopped chan struct{}
}

// Hash returns the core's index (its stable identity).
func (c *Core) Hash() int { return c.hash }

// Flag returns the core's bitset.
func (c *Core) Flag() Flag { return c.flag }

// Name returns the core's current display name, including any suffixes
// appended by Occupy.
func (c *Core) Name() string {
	c.nameMu.Lock()
	defer c.nameMu.Unlock()
	return c.name
}

func (c *Core) memoryFootprint() uint64 {
	const coreSize = 512
	const schedSize = 256
	const taskSize = 128
	st := c.sched.Stat()
	return uint64(coreSize+schedSize) + uint64(taskSize*st.TaskMax)
}
