package core

import (
	"net"

	"github.com/bianwenhui/lightning/netfab"
)

// Attach may run on any goroutine: it records sockID against conn in
// the target core's network table, then pokes the target scheduler so
// the next tick notices the new descriptor. Attach is atomic with
// respect to the target's loop: either the next tick sees the entry or
// Attach returns an error and nothing changed.
func (r *Registry) Attach(hash, sockID int, conn net.Conn, ctx interface{}, exec func(e *netfab.Entry), reset func(e *netfab.Entry), check func(e *netfab.Entry) bool) error {
	c, err := r.Get(hash)
	if err != nil {
		return err
	}
	c.net.Attach(sockID, conn, ctx, exec, reset, check)
	c.sched.Wake()
	return nil
}
