// Package driver provides a word stream consumer for the fetch buffer. It
// presents one fetch address per cycle, holds its position while stalled,
// and can inject scripted control-flow redirections.
package driver

import (
	"log"
	"reflect"

	"github.com/sarchlab/fetchbuf/fetch"
	"github.com/sarchlab/fetchbuf/mem"
	"github.com/sarchlab/fetchbuf/sim"
)

// A Redirect is a scripted control-flow change: after the given number of
// words has been fetched, the stream jumps to the target address with a
// flush.
type Redirect struct {
	AfterWords int
	To         uint64
}

// Comp streams words out of a fetch buffer.
type Comp struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	fetchPort sim.Port
	bufferDst sim.RemotePort

	wordBytes    uint64
	numWords     int
	startAddress uint64

	currentAddress uint64
	pendingFlush   bool
	redirects      []Redirect
	nextRedirect   int

	inflight *fetch.FetchReq

	words       []uint32
	fault       mem.FaultKind
	stallCycles int
	done        bool
}

// Handle defines how the Comp handles events.
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
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

// Words returns the words fetched so far, in stream order.
func (c *Comp) Words() []uint32 {
	return c.words
}

// Fault returns the fault that stopped the stream, if any.
func (c *Comp) Fault() mem.FaultKind {
	return c.fault
}

// StallCycles returns the number of responses that asked the driver to hold
// its position.
func (c *Comp) StallCycles() int {
	return c.stallCycles
}

// Done tells if the driver has fetched all the words it was asked for.
func (c *Comp) Done() bool {
	return c.done
}

type middleware struct {
	*Comp
}

func (m *middleware) Tick() bool {
	madeProgress := false

	madeProgress = m.processRsp() || madeProgress
	madeProgress = m.sendReq() || madeProgress

	return madeProgress
}

func (m *middleware) processRsp() bool {
	msg := m.fetchPort.PeekIncoming()
	if msg == nil {
		return false
	}

	rsp, ok := msg.(*fetch.FetchRsp)
	if !ok {
		log.Panicf("cannot handle response of type %s", reflect.TypeOf(msg))
	}

	if m.inflight == nil || rsp.RespondTo != m.inflight.ID {
		log.Panic("response does not match the outstanding fetch")
	}

	m.fetchPort.RetrieveIncoming()
	m.inflight = nil

	switch {
	case rsp.Fault != mem.FaultNone:
		m.fault = rsp.Fault
		m.done = true
	case rsp.Stall:
		// Hold the position. The same address is re-presented next cycle.
		m.stallCycles++
	default:
		m.words = append(m.words, rsp.Word)
		m.advance()
	}

	return true
}

func (m *middleware) advance() {
	if len(m.words) >= m.numWords {
		m.done = true
		return
	}

	if m.nextRedirect < len(m.redirects) &&
		len(m.words) >= m.redirects[m.nextRedirect].AfterWords {
		m.currentAddress = m.redirects[m.nextRedirect].To
		m.pendingFlush = true
		m.nextRedirect++
		return
	}

	m.currentAddress += m.wordBytes
}

func (m *middleware) sendReq() bool {
	if m.done || m.inflight != nil {
		return false
	}

	builder := fetch.FetchReqBuilder{}.
		WithSrc(m.fetchPort.AsRemote()).
		WithDst(m.bufferDst).
		WithAddress(m.currentAddress).
		WithPredictedNextAddress(m.currentAddress + m.wordBytes)

	if m.pendingFlush {
		builder = builder.WithFlush()
	}

	req := builder.Build()

	if err := m.fetchPort.Send(req); err != nil {
		return false
	}

	m.pendingFlush = false
	m.inflight = req

	return true
}
