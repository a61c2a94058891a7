// Package fetch provides a dual-line instruction fetch buffer. It sits
// between a line-oriented backing store with multi-cycle latency and a
// consumer that requests individually addressed words, including words that
// straddle the boundary between two consecutive lines.
package fetch

import (
	"github.com/sarchlab/fetchbuf/mem"
	"github.com/sarchlab/fetchbuf/sim"
)

var fetchReqByteOverhead = 20
var fetchRspByteOverhead = 12

// A FetchReq presents the consumer's fetch cursor for one cycle. A consumer
// that is stalled re-presents the same address in the next cycle. Setting
// Flush redirects the stream: all buffered lines and in-flight reads are
// abandoned before the new address is considered.
type FetchReq struct {
	sim.MsgMeta

	Address              uint64
	PredictedNextAddress uint64
	Flush                bool
}

// Meta returns the message meta.
func (r *FetchReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a cloned FetchReq with a different ID.
func (r *FetchReq) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()
	return &cloneMsg
}

// FetchReqBuilder can build fetch requests.
type FetchReqBuilder struct {
	src, dst  sim.RemotePort
	address   uint64
	predicted uint64
	flush     bool
}

// WithSrc sets the source of the request to build.
func (b FetchReqBuilder) WithSrc(src sim.RemotePort) FetchReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b FetchReqBuilder) WithDst(dst sim.RemotePort) FetchReqBuilder {
	b.dst = dst
	return b
}

// WithAddress sets the fetch address of the request to build.
func (b FetchReqBuilder) WithAddress(address uint64) FetchReqBuilder {
	b.address = address
	return b
}

// WithPredictedNextAddress sets the address the consumer expects to fetch in
// the following cycle.
func (b FetchReqBuilder) WithPredictedNextAddress(
	address uint64,
) FetchReqBuilder {
	b.predicted = address
	return b
}

// WithFlush marks the request as a control-flow redirection.
func (b FetchReqBuilder) WithFlush() FetchReqBuilder {
	b.flush = true
	return b
}

// Build creates a new FetchReq
func (b FetchReqBuilder) Build() *FetchReq {
	r := &FetchReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficBytes = fetchReqByteOverhead
	r.Address = b.address
	r.PredictedNextAddress = b.predicted
	r.Flush = b.flush
	return r
}

// A FetchRsp carries the word stream output for one cycle. When Stall is
// true the word is a placeholder and the consumer must hold its position.
// A non-none Fault reports a backing store fault for the requested address;
// the buffer does not retry faulted reads.
type FetchRsp struct {
	sim.MsgMeta

	RespondTo string
	Word      uint32
	NextWord  uint32
	Stall     bool
	Fault     mem.FaultKind
}

// Meta returns the message meta.
func (r *FetchRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a cloned FetchRsp with a different ID.
func (r *FetchRsp) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()
	return &cloneMsg
}

// GetRspTo returns the ID of the request that the response is responding to.
func (r *FetchRsp) GetRspTo() string {
	return r.RespondTo
}

// FetchRspBuilder can build fetch responses.
type FetchRspBuilder struct {
	src, dst sim.RemotePort
	rspTo    string
	word     uint32
	nextWord uint32
	stall    bool
	fault    mem.FaultKind
}

// WithSrc sets the source of the response to build.
func (b FetchRspBuilder) WithSrc(src sim.RemotePort) FetchRspBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the response to build.
func (b FetchRspBuilder) WithDst(dst sim.RemotePort) FetchRspBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets the ID of the request that the response is replying to.
func (b FetchRspBuilder) WithRspTo(id string) FetchRspBuilder {
	b.rspTo = id
	return b
}

// WithWord sets the word extracted for the requested address.
func (b FetchRspBuilder) WithWord(word uint32) FetchRspBuilder {
	b.word = word
	return b
}

// WithNextWord sets the word extracted for the predicted next address.
func (b FetchRspBuilder) WithNextWord(word uint32) FetchRspBuilder {
	b.nextWord = word
	return b
}

// WithStall marks that the consumer must hold its position.
func (b FetchRspBuilder) WithStall() FetchRspBuilder {
	b.stall = true
	return b
}

// WithFault sets the fault reported to the consumer.
func (b FetchRspBuilder) WithFault(kind mem.FaultKind) FetchRspBuilder {
	b.fault = kind
	return b
}

// Build creates a new FetchRsp
func (b FetchRspBuilder) Build() *FetchRsp {
	r := &FetchRsp{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficBytes = fetchRspByteOverhead
	r.RespondTo = b.rspTo
	r.Word = b.word
	r.NextWord = b.nextWord
	r.Stall = b.stall
	r.Fault = b.fault
	return r
}
