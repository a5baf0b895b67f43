// Package netfab is a core's network-fabric attachment table: the Go
// stand-in for the corenet/corerpc/corenet_maping subsystems, expressed
// over net.Conn rather than a kernel-bypass NIC stack (explicitly out of
// scope).
package netfab

import (
	"net"
	"sync"
)

// Entry is one socket attached to a core's network table.
type Entry struct {
	SockID int
	Ctx    interface{}
	Conn   net.Conn
	Exec   func(e *Entry)
	Reset  func(e *Entry)
	Check  func(e *Entry) bool
}

// Table is a core's per-socket attachment table.
type Table struct {
	mu      sync.Mutex
	entries map[int]*Entry
}

// NewTable creates an empty attachment table.
func NewTable() *Table {
	return &Table{entries: make(map[int]*Entry)}
}

// Attach records sockID against conn. The caller (core.Registry.Attach)
// is responsible for waking the owning core's scheduler afterward so
// the next tick observes it.
func (t *Table) Attach(sockID int, conn net.Conn, ctx interface{}, exec func(e *Entry), reset func(e *Entry), check func(e *Entry) bool) *Entry {
	e := &Entry{SockID: sockID, Ctx: ctx, Conn: conn, Exec: exec, Reset: reset, Check: check}
	t.mu.Lock()
	t.entries[sockID] = e
	t.mu.Unlock()
	return e
}

// Detach removes sockID, running its Reset callback first if present.
func (t *Table) Detach(sockID int) {
	t.mu.Lock()
	e, ok := t.entries[sockID]
	delete(t.entries, sockID)
	t.mu.Unlock()
	if ok && e.Reset != nil {
		e.Reset(e)
	}
}

// Get looks up an attached entry by socket id.
func (t *Table) Get(sockID int) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[sockID]
	return e, ok
}

// Range visits every attached entry whose Check passes (or that has no
// Check), the scan-time equivalent of a per-connection liveness sweep.
func (t *Table) Range(fn func(e *Entry)) {
	t.mu.Lock()
	snapshot := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		snapshot = append(snapshot, e)
	}
	t.mu.Unlock()
	for _, e := range snapshot {
		if e.Check == nil || e.Check(e) {
			fn(e)
		}
	}
}

// Len reports the number of attached entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
