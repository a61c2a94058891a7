package fetch

import (
	"log"
	"reflect"

	"github.com/sarchlab/fetchbuf/mem"
	"github.com/sarchlab/fetchbuf/sim"
	"github.com/sarchlab/fetchbuf/tracing"
)

// A state is the fetch controller's state.
type state int

const (
	// stateAwaitingFirstLine is the initial state. It is re-entered on every
	// flush and on every true miss. The controller keeps exactly one read
	// outstanding and stalls the consumer until the line lands.
	stateAwaitingFirstLine state = iota

	// stateStreaming serves words from the active line.
	stateStreaming

	// statePrefetching is streaming with a successor-line read in flight.
	statePrefetching
)

func (s state) String() string {
	switch s {
	case stateAwaitingFirstLine:
		return "awaiting-first-line"
	case stateStreaming:
		return "streaming"
	case statePrefetching:
		return "prefetching"
	}

	return "unknown"
}

// A pendingRead is the only outstanding backing-store request. The epoch tag
// identifies the flush epoch the request was issued in, so that a line that
// lands after a flush can be discarded instead of written into a slot.
type pendingRead struct {
	reqID   string
	address uint64
	slot    Slot
	epoch   uint64
}

// A readIntent is a read the controller has decided to issue but has not
// been able to send yet because the bottom port was busy.
type readIntent struct {
	address uint64
	slot    Slot
}

// Comp is the dual-line fetch buffer. The top port accepts one FetchReq per
// cycle from the consumer. The bottom port talks to the backing store in
// whole aligned lines.
type Comp struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	topPort    sim.Port
	bottomPort sim.Port
	bottomDst  sim.RemotePort

	store     *LineStore
	extractor *Extractor

	lineBytes     uint64
	laneBytes     uint64
	prefetchLanes uint64

	state      state
	activeSlot Slot
	epoch      uint64
	pending    *pendingRead
	intent     *readIntent
	fault      mem.FaultKind
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
	madeProgress := c.MiddlewareHolder.Tick()

	c.mustHoldSingleRequestInvariant()

	return madeProgress
}

// TopPort returns the port that the consumer sends fetch requests to.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// SetBackingStore sets the remote port of the backing store that serves the
// line reads.
func (c *Comp) SetBackingStore(dst sim.RemotePort) {
	c.bottomDst = dst
}

// State exposes the controller state for tests and monitoring hooks.
func (c *Comp) State() string {
	return c.state.String()
}

// mustHoldSingleRequestInvariant panics when the controller tracks both an
// unsent intent and an in-flight read. That combination would allow a second
// request to race the first one's landing.
func (c *Comp) mustHoldSingleRequestInvariant() {
	if c.pending != nil && c.intent != nil {
		log.Panicf(
			"fetch controller holds intent for %#x while read for %#x is in flight",
			c.intent.address, c.pending.address)
	}
}

type middleware struct {
	*Comp
}

func (m *middleware) Tick() bool {
	madeProgress := false

	madeProgress = m.collectLandings() || madeProgress
	madeProgress = m.serveFetch() || madeProgress
	madeProgress = m.issueRead() || madeProgress

	return madeProgress
}

// collectLandings drains completed line reads from the bottom port.
func (m *middleware) collectLandings() bool {
	madeProgress := false

	for {
		msg := m.bottomPort.PeekIncoming()
		if msg == nil {
			return madeProgress
		}

		switch rsp := msg.(type) {
		case *mem.BlockReadyRsp:
			m.landLine(rsp)
		case *mem.BlockFaultRsp:
			m.recordFault(rsp)
		default:
			log.Panicf("cannot handle response of type %s", reflect.TypeOf(msg))
		}

		m.bottomPort.RetrieveIncoming()
		madeProgress = true
	}
}

// landLine writes a landed line into its destination slot, unless the read
// belongs to an earlier flush epoch, in which case the data is discarded.
func (m *middleware) landLine(rsp *mem.BlockReadyRsp) {
	p := m.pending
	if p == nil || rsp.RespondTo != p.reqID {
		// A read that was cancelled by a flush or a redirect. Drop it.
		return
	}

	tracing.TraceReqFinalize(rsp, m.Comp)

	m.pending = nil

	if p.epoch != m.epoch {
		return
	}

	m.store.Write(p.slot, p.address, rsp.Data)

	if m.state == stateAwaitingFirstLine || m.state == statePrefetching {
		m.state = stateStreaming
	}
}

// recordFault remembers a backing-store fault so that the next fetch
// response can surface it. The controller does not retry the read.
func (m *middleware) recordFault(rsp *mem.BlockFaultRsp) {
	p := m.pending
	if p == nil || rsp.RespondTo != p.reqID {
		return
	}

	tracing.TraceReqFinalize(rsp, m.Comp)

	m.pending = nil

	if p.epoch != m.epoch {
		return
	}

	m.fault = rsp.Kind
	m.state = stateAwaitingFirstLine
}

// serveFetch answers the fetch request of the current cycle.
func (m *middleware) serveFetch() bool {
	msg := m.topPort.PeekIncoming()
	if msg == nil {
		return false
	}

	if !m.topPort.CanSend() {
		return false
	}

	req, ok := msg.(*FetchReq)
	if !ok {
		log.Panicf("cannot handle request of type %s", reflect.TypeOf(msg))
	}

	tracing.TraceReqReceive(req, m.Comp)

	rsp := m.respondTo(req)

	if err := m.topPort.Send(rsp); err != nil {
		log.Panic("sending fetch response failed after CanSend check")
	}

	m.topPort.RetrieveIncoming()

	tracing.TraceReqComplete(req, m.Comp)

	return true
}

// respondTo computes the word stream output for one request and updates the
// controller state. Priority order: flush, recorded fault, membership.
func (m *middleware) respondTo(req *FetchReq) *FetchRsp {
	rsp := FetchRspBuilder{}.
		WithSrc(m.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID)

	if req.Flush {
		m.flush()
		m.startRefill(req.Address)

		return rsp.
			WithWord(m.extractor.Placeholder()).
			WithNextWord(m.extractor.Placeholder()).
			WithStall().
			Build()
	}

	if m.fault != mem.FaultNone {
		fault := m.fault
		m.fault = mem.FaultNone

		return rsp.
			WithWord(m.extractor.Placeholder()).
			WithNextWord(m.extractor.Placeholder()).
			WithStall().
			WithFault(fault).
			Build()
	}

	slot, ok := m.store.Lookup(req.Address)
	if !ok {
		// A true miss, including the cold start.
		m.startRefill(req.Address)

		return rsp.
			WithWord(m.extractor.Placeholder()).
			WithNextWord(m.extractor.Placeholder()).
			WithStall().
			Build()
	}

	// Promotion of the active slot is registered: it only changes on an
	// explicit membership match, never during a stall.
	m.activeSlot = slot

	word, complete := m.extractor.Extract(slot, req.Address)
	nextWord, _ := m.extractor.ExtractAny(req.PredictedNextAddress)

	m.considerPrefetch(req.Address, slot)

	rsp = rsp.WithWord(word).WithNextWord(nextWord)
	if !complete {
		// The word spills into a successor line that has not landed yet.
		// The consumer must hold until the splice can be completed.
		rsp = rsp.WithStall()
	}

	return rsp.Build()
}

// flush abandons all buffered state. The epoch counter advances so that the
// result of any read still in flight is discarded when it lands.
func (m *middleware) flush() {
	m.epoch++
	m.pending = nil
	m.intent = nil
	m.fault = mem.FaultNone
	m.store.InvalidateAll()
	m.state = stateAwaitingFirstLine
	m.activeSlot = SlotA
}

// startRefill begins fetching the line that contains addr. Re-presenting the
// same missing address never issues a second read.
func (m *middleware) startRefill(addr uint64) {
	base := m.store.BaseOf(addr)

	if m.pending != nil && m.pending.address == base {
		return
	}

	if m.intent != nil && m.intent.address == base {
		return
	}

	// A true miss means both held lines are unrelated to the new stream
	// position. A read that is still in flight for the old position is
	// abandoned; its landing will not match the new request ID.
	m.pending = nil
	m.intent = nil
	m.store.InvalidateAll()
	m.state = stateAwaitingFirstLine
	m.activeSlot = SlotA

	m.intent = &readIntent{address: base, slot: SlotA}
}

// considerPrefetch starts fetching the successor line once the read cursor
// crosses the near-boundary threshold of the active line, so that the spill
// splice at the last lane does not stall.
func (m *middleware) considerPrefetch(addr uint64, active Slot) {
	lanesPerLine := m.lineBytes / m.laneBytes
	laneIdx := (addr % m.lineBytes) / m.laneBytes

	if laneIdx < lanesPerLine-m.prefetchLanes {
		return
	}

	successor := m.store.Line(active).BaseAddress + m.lineBytes

	if m.store.Holds(active.Other(), successor) {
		// The successor already landed. No redundant fetch.
		return
	}

	if m.pending != nil || m.intent != nil {
		return
	}

	m.intent = &readIntent{address: successor, slot: active.Other()}
	m.state = statePrefetching
}

// issueRead sends the decided read to the backing store, respecting the
// one-outstanding-request limit and the bottom port's backpressure.
func (m *middleware) issueRead() bool {
	if m.intent == nil || m.pending != nil {
		return false
	}

	if !m.bottomPort.CanSend() {
		return false
	}

	req := mem.BlockReadReqBuilder{}.
		WithSrc(m.bottomPort.AsRemote()).
		WithDst(m.bottomDst).
		WithAddress(m.intent.address).
		WithLineBytes(m.lineBytes).
		Build()

	if err := m.bottomPort.Send(req); err != nil {
		return false
	}

	tracing.TraceReqInitiate(req, m.Comp, "")

	m.pending = &pendingRead{
		reqID:   req.ID,
		address: m.intent.address,
		slot:    m.intent.slot,
		epoch:   m.epoch,
	}
	m.intent = nil

	return true
}
