// Package memring provides the pooled-allocation primitives that stand
// in for the hugepage, slab, and shared-memory-ring subsystems a core
// depends on: fixed-size blocks recycled through a sync.Pool, and a
// bounded ring buffer for queued frames.
package memring

import "sync"

const blockSize = 2 << 20 // 2MiB, a stand-in for one hugepage-backed block

// Pool is a fixed-size block arena recycled through a sync.Pool. Blocks
// are zeroed on return so a recycled block never leaks a previous
// owner's data.
type Pool struct {
	node int
	pool sync.Pool
}

// NewPool creates a block pool private to NUMA node node (or an
// unbound, non-NUMA pool when node < 0, the case for the streaming and
// static slabs a core always creates regardless of daemon mode).
func NewPool(node int) (*Pool, error) {
	p := &Pool{node: node}
	p.pool.New = func() interface{} {
		return make([]byte, blockSize)
	}
	return p, nil
}

// NewStreamPool backs the always-present per-core streaming slab.
func NewStreamPool() *Pool {
	p, _ := NewPool(-1)
	return p
}

// NewStaticPool backs the always-present per-core static slab.
func NewStaticPool() *Pool {
	p, _ := NewPool(-1)
	return p
}

// Get returns a block, possibly recycled.
func (p *Pool) Get() []byte {
	return p.pool.Get().([]byte)
}

// Put returns a block to the pool after clearing it.
func (p *Pool) Put(b []byte) {
	for i := range b {
		b[i] = 0
	}
	p.pool.Put(b)
}
