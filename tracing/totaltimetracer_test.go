package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/fetchbuf/sim"
)

type fakeTimeTeller struct {
	time sim.VTimeInSec
}

func (t *fakeTimeTeller) CurrentTime() sim.VTimeInSec {
	return t.time
}

var _ = Describe("TotalTimeTracer", func() {
	var (
		timeTeller *fakeTimeTeller
		tracer     *TotalTimeTracer
	)

	BeforeEach(func() {
		timeTeller = &fakeTimeTeller{}
		tracer = NewTotalTimeTracer(timeTeller, func(t Task) bool {
			return t.Kind == "req_in"
		})
	})

	It("should sum the time of filtered tasks", func() {
		timeTeller.time = 1
		tracer.StartTask(Task{ID: "1", Kind: "req_in"})

		timeTeller.time = 3
		tracer.EndTask(Task{ID: "1"})

		Expect(tracer.TotalTime()).To(Equal(sim.VTimeInSec(2)))
	})

	It("should ignore tasks that do not pass the filter", func() {
		timeTeller.time = 1
		tracer.StartTask(Task{ID: "1", Kind: "req_out"})

		timeTeller.time = 3
		tracer.EndTask(Task{ID: "1"})

		Expect(tracer.TotalTime()).To(Equal(sim.VTimeInSec(0)))
	})

	It("should ignore unmatched task ends", func() {
		timeTeller.time = 3
		tracer.EndTask(Task{ID: "unknown"})

		Expect(tracer.TotalTime()).To(Equal(sim.VTimeInSec(0)))
	})
})
