// Package blockmem provides a fixed-latency backing store that serves whole
// aligned lines.
package blockmem

import (
	"log"
	"reflect"

	"github.com/sarchlab/fetchbuf/mem"
	"github.com/sarchlab/fetchbuf/sim"
)

type readRespondEvent struct {
	*sim.EventBase
	req *mem.BlockReadReq
}

func newReadRespondEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
	req *mem.BlockReadReq,
) *readRespondEvent {
	return &readRespondEvent{sim.NewEventBase(time, handler), req}
}

// A FaultRange is an address range that cannot be read. Reads that fall in
// the range are answered with a BlockFaultRsp of the given kind.
type FaultRange struct {
	Low, High uint64
	Kind      mem.FaultKind
}

// Contains tells if an address falls in the range.
func (r FaultRange) Contains(addr uint64) bool {
	return addr >= r.Low && addr < r.High
}

// Comp is a backing store that always responds to a line read in a fixed
// number of cycles. There is no limit on the concurrency of this unit.
type Comp struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	topPort sim.Port

	Storage     *mem.Storage
	Latency     int
	LineBytes   uint64
	faultRanges []FaultRange
}

// Handle defines how the Comp handles events.
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *readRespondEvent:
		return c.handleReadRespondEvent(e)
	case sim.TickEvent:
		return c.TickingComponent.Handle(e)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

// Tick updates the component state.
func (c *Comp) Tick() bool {
	return c.MiddlewareHolder.Tick()
}

// TopPort returns the port that accepts line read requests.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

type middleware struct {
	*Comp
}

func (m *middleware) Tick() bool {
	return m.takeNewReqs()
}

func (m *middleware) takeNewReqs() bool {
	msg := m.topPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	switch msg := msg.(type) {
	case *mem.BlockReadReq:
		m.handleBlockReadReq(msg)
	default:
		log.Panicf("cannot handle request of type %s", reflect.TypeOf(msg))
	}

	return true
}

func (m *middleware) handleBlockReadReq(req *mem.BlockReadReq) {
	if req.Address%m.LineBytes != 0 {
		log.Panicf("line read address %#x is not aligned", req.Address)
	}

	now := m.Engine.CurrentTime()
	timeToSchedule := m.Freq.NCyclesLater(m.Latency, now)
	respondEvent := newReadRespondEvent(timeToSchedule, m.Comp, req)
	m.Engine.Schedule(respondEvent)
}

func (c *Comp) handleReadRespondEvent(e *readRespondEvent) error {
	req := e.req

	rsp := c.buildRsp(req)

	networkErr := c.topPort.Send(rsp)
	if networkErr != nil {
		now := e.Time()
		retry := newReadRespondEvent(c.Freq.NextTick(now), c, req)
		c.Engine.Schedule(retry)
		return nil
	}

	c.TickLater()

	return nil
}

func (c *Comp) buildRsp(req *mem.BlockReadReq) sim.Msg {
	for _, r := range c.faultRanges {
		if r.Contains(req.Address) {
			return mem.BlockFaultRspBuilder{}.
				WithSrc(c.topPort.AsRemote()).
				WithDst(req.Src).
				WithRspTo(req.ID).
				WithKind(r.Kind).
				Build()
		}
	}

	data, err := c.Storage.Read(req.Address, req.LineBytes)
	if err != nil {
		return mem.BlockFaultRspBuilder{}.
			WithSrc(c.topPort.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			WithKind(mem.FaultAccess).
			Build()
	}

	return mem.BlockReadyRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		WithData(data).
		Build()
}
