// Package mem defines the line-oriented memory protocol and the storage that
// backs the modeled memories.
package mem

import "github.com/sarchlab/fetchbuf/sim"

var blockReqByteOverhead = 12
var blockRspByteOverhead = 4

// A FaultKind describes why a block read could not be served.
type FaultKind int

// Possible fault kinds.
const (
	FaultNone FaultKind = iota
	FaultAccess
	FaultBus
)

func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "none"
	case FaultAccess:
		return "access"
	case FaultBus:
		return "bus"
	}

	return "unknown"
}

// A BlockReadReq asks a backing store for one whole aligned line.
type BlockReadReq struct {
	sim.MsgMeta

	Address   uint64
	LineBytes uint64
}

// Meta returns the message meta.
func (r *BlockReadReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a cloned BlockReadReq with a different ID.
func (r *BlockReadReq) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()
	return &cloneMsg
}

// BlockReadReqBuilder can build block read requests.
type BlockReadReqBuilder struct {
	src, dst  sim.RemotePort
	address   uint64
	lineBytes uint64
}

// WithSrc sets the source of the request to build.
func (b BlockReadReqBuilder) WithSrc(src sim.RemotePort) BlockReadReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b BlockReadReqBuilder) WithDst(dst sim.RemotePort) BlockReadReqBuilder {
	b.dst = dst
	return b
}

// WithAddress sets the line-aligned address of the request to build.
func (b BlockReadReqBuilder) WithAddress(address uint64) BlockReadReqBuilder {
	b.address = address
	return b
}

// WithLineBytes sets the number of bytes in the requested line.
func (b BlockReadReqBuilder) WithLineBytes(
	lineBytes uint64,
) BlockReadReqBuilder {
	b.lineBytes = lineBytes
	return b
}

// Build creates a new BlockReadReq
func (b BlockReadReqBuilder) Build() *BlockReadReq {
	r := &BlockReadReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficBytes = blockReqByteOverhead
	r.Address = b.address
	r.LineBytes = b.lineBytes
	return r
}

// A BlockReadyRsp carries one whole line back to the requester.
type BlockReadyRsp struct {
	sim.MsgMeta

	RespondTo string
	Data      []byte
}

// Meta returns the message meta.
func (r *BlockReadyRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a cloned BlockReadyRsp with a different ID.
func (r *BlockReadyRsp) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()
	return &cloneMsg
}

// GetRspTo returns the ID of the request that the response is responding to.
func (r *BlockReadyRsp) GetRspTo() string {
	return r.RespondTo
}

// BlockReadyRspBuilder can build block ready responses.
type BlockReadyRspBuilder struct {
	src, dst sim.RemotePort
	rspTo    string
	data     []byte
}

// WithSrc sets the source of the response to build.
func (b BlockReadyRspBuilder) WithSrc(src sim.RemotePort) BlockReadyRspBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the response to build.
func (b BlockReadyRspBuilder) WithDst(dst sim.RemotePort) BlockReadyRspBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets the ID of the request that the response is replying to.
func (b BlockReadyRspBuilder) WithRspTo(id string) BlockReadyRspBuilder {
	b.rspTo = id
	return b
}

// WithData sets the line data carried by the response.
func (b BlockReadyRspBuilder) WithData(data []byte) BlockReadyRspBuilder {
	b.data = data
	return b
}

// Build creates a new BlockReadyRsp
func (b BlockReadyRspBuilder) Build() *BlockReadyRsp {
	r := &BlockReadyRsp{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficBytes = len(b.data) + blockRspByteOverhead
	r.RespondTo = b.rspTo
	r.Data = b.data
	return r
}

// A BlockFaultRsp reports that a block read failed. The requester must not
// retry the access on its own.
type BlockFaultRsp struct {
	sim.MsgMeta

	RespondTo string
	Kind      FaultKind
}

// Meta returns the message meta.
func (r *BlockFaultRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a cloned BlockFaultRsp with a different ID.
func (r *BlockFaultRsp) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()
	return &cloneMsg
}

// GetRspTo returns the ID of the request that the response is responding to.
func (r *BlockFaultRsp) GetRspTo() string {
	return r.RespondTo
}

// BlockFaultRspBuilder can build block fault responses.
type BlockFaultRspBuilder struct {
	src, dst sim.RemotePort
	rspTo    string
	kind     FaultKind
}

// WithSrc sets the source of the response to build.
func (b BlockFaultRspBuilder) WithSrc(src sim.RemotePort) BlockFaultRspBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the response to build.
func (b BlockFaultRspBuilder) WithDst(dst sim.RemotePort) BlockFaultRspBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets the ID of the request that the response is replying to.
func (b BlockFaultRspBuilder) WithRspTo(id string) BlockFaultRspBuilder {
	b.rspTo = id
	return b
}

// WithKind sets the kind of the fault.
func (b BlockFaultRspBuilder) WithKind(kind FaultKind) BlockFaultRspBuilder {
	b.kind = kind
	return b
}

// Build creates a new BlockFaultRsp
func (b BlockFaultRspBuilder) Build() *BlockFaultRsp {
	r := &BlockFaultRsp{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficBytes = blockRspByteOverhead
	r.RespondTo = b.rspTo
	r.Kind = b.kind
	return r
}
