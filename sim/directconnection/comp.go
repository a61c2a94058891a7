// Package directconnection provides a latency-free connection between ports.
package directconnection

import (
	"github.com/sarchlab/fetchbuf/sim"
)

// Comp is a DirectConnection that connects components without latency
type Comp struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	ports        []sim.Port
	portByRemote map[sim.RemotePort]sim.Port
	nextPortID   int
}

// PlugIn marks the port connects to this DirectConnection.
func (c *Comp) PlugIn(port sim.Port, _ int) {
	c.Lock()
	defer c.Unlock()

	c.ports = append(c.ports, port)
	c.portByRemote[port.AsRemote()] = port

	port.SetConnection(c)
}

// Unplug marks the port no longer connects to this DirectConnection.
func (c *Comp) Unplug(_ sim.Port) {
	panic("not implemented")
}

// NotifyAvailable is called by a port to notify that the connection can
// deliver to the port again.
func (c *Comp) NotifyAvailable(p sim.Port) {
	for _, port := range c.ports {
		if port == p {
			continue
		}

		port.NotifyAvailable()
	}

	c.TickNow()
}

// NotifySend is called by a port to notify that the connection can start
// to tick now
func (c *Comp) NotifySend() {
	c.TickNow()
}

// Tick updates the states of the connection and delivers messages.
func (c *Comp) Tick() bool {
	return c.MiddlewareHolder.Tick()
}

type middleware struct {
	*Comp
}

func (m *middleware) Tick() bool {
	madeProgress := false
	for i := 0; i < len(m.ports); i++ {
		portID := (i + m.nextPortID) % len(m.ports)
		port := m.ports[portID]
		madeProgress = m.forwardMany(port) || madeProgress
	}

	m.nextPortID = (m.nextPortID + 1) % len(m.ports)
	return madeProgress
}

func (m *middleware) forwardMany(port sim.Port) bool {
	madeProgress := false
	for {
		head := port.PeekOutgoing()
		if head == nil {
			break
		}

		dst, found := m.portByRemote[head.Meta().Dst]
		if !found {
			panic("dst is not connected to this connection")
		}

		err := dst.Deliver(head)
		if err != nil {
			break
		}

		madeProgress = true
		port.RetrieveOutgoing()
	}

	return madeProgress
}
