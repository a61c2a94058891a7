package blockmem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/fetchbuf/mem"
	"github.com/sarchlab/fetchbuf/sim"
)

var _ = Describe("Block Memory", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		port     *MockPort
		comp     *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())

		engine = NewMockEngine(mockCtrl)
		port = NewMockPort(mockCtrl)
		port.EXPECT().
			AsRemote().
			Return(sim.RemotePort("Mem.Top")).
			AnyTimes()

		comp = MakeBuilder().
			WithEngine(engine).
			WithNewStorage(1 * mem.MB).
			WithLineBytes(64).
			Build("Mem")
		comp.Latency = 10
		comp.topPort = port
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	newReadReq := func(addr uint64) *mem.BlockReadReq {
		return mem.BlockReadReqBuilder{}.
			WithSrc("FetchBuf.BottomPort").
			WithDst(port.AsRemote()).
			WithAddress(addr).
			WithLineBytes(64).
			Build()
	}

	It("should do nothing without a request", func() {
		port.EXPECT().RetrieveIncoming().Return(nil)

		madeProgress := comp.Tick()

		Expect(madeProgress).To(BeFalse())
	})

	It("should schedule a respond event for a line read", func() {
		req := newReadReq(0x1000)

		port.EXPECT().RetrieveIncoming().Return(req)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(10))
		engine.EXPECT().
			Schedule(gomock.AssignableToTypeOf(&readRespondEvent{}))

		madeProgress := comp.Tick()

		Expect(madeProgress).To(BeTrue())
	})

	It("should reject an unaligned line read", func() {
		req := newReadReq(0x1008)

		port.EXPECT().RetrieveIncoming().Return(req)

		Expect(func() { comp.Tick() }).To(Panic())
	})

	It("should respond with the line data", func() {
		data := make([]byte, 64)
		data[0] = 0xab
		data[63] = 0xcd
		comp.Storage.Write(0x1000, data)

		req := newReadReq(0x1000)
		event := newReadRespondEvent(11, comp, req)

		var sent *mem.BlockReadyRsp
		port.EXPECT().
			Send(gomock.AssignableToTypeOf(&mem.BlockReadyRsp{})).
			Do(func(msg sim.Msg) { sent = msg.(*mem.BlockReadyRsp) }).
			Return(nil)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(11))
		engine.EXPECT().Schedule(gomock.Any())

		comp.Handle(event)

		Expect(sent.RespondTo).To(Equal(req.ID))
		Expect(sent.Data).To(HaveLen(64))
		Expect(sent.Data[0]).To(Equal(byte(0xab)))
		Expect(sent.Data[63]).To(Equal(byte(0xcd)))
	})

	It("should respond with a fault for a configured range", func() {
		comp.faultRanges = append(comp.faultRanges, FaultRange{
			Low:  0x2000,
			High: 0x3000,
			Kind: mem.FaultBus,
		})

		req := newReadReq(0x2000)
		event := newReadRespondEvent(11, comp, req)

		var sent *mem.BlockFaultRsp
		port.EXPECT().
			Send(gomock.AssignableToTypeOf(&mem.BlockFaultRsp{})).
			Do(func(msg sim.Msg) { sent = msg.(*mem.BlockFaultRsp) }).
			Return(nil)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(11))
		engine.EXPECT().Schedule(gomock.Any())

		comp.Handle(event)

		Expect(sent.RespondTo).To(Equal(req.ID))
		Expect(sent.Kind).To(Equal(mem.FaultBus))
	})

	It("should respond with an access fault past the capacity", func() {
		req := newReadReq(2 * mem.MB)
		event := newReadRespondEvent(11, comp, req)

		var sent *mem.BlockFaultRsp
		port.EXPECT().
			Send(gomock.AssignableToTypeOf(&mem.BlockFaultRsp{})).
			Do(func(msg sim.Msg) { sent = msg.(*mem.BlockFaultRsp) }).
			Return(nil)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInSec(11))
		engine.EXPECT().Schedule(gomock.Any())

		comp.Handle(event)

		Expect(sent.Kind).To(Equal(mem.FaultAccess))
	})

	It("should retry when the response cannot be sent", func() {
		req := newReadReq(0x1000)
		event := newReadRespondEvent(11, comp, req)

		port.EXPECT().
			Send(gomock.AssignableToTypeOf(&mem.BlockReadyRsp{})).
			Return(&sim.SendError{})
		engine.EXPECT().
			Schedule(gomock.AssignableToTypeOf(&readRespondEvent{}))

		comp.Handle(event)
	})
})
