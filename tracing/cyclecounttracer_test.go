package tracing

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tablesim/table"
)

type fixedTimeTeller struct {
	now time.Duration
}

func (t *fixedTimeTeller) Now() time.Duration {
	return t.now
}

var _ = Describe("CycleCountTracer", func() {
	var (
		timeTeller *fixedTimeTeller
		tracer     *CycleCountTracer
	)

	BeforeEach(func() {
		timeTeller = &fixedTimeTeller{}
		tracer = NewCycleCountTracer(timeTeller, KindIs(KindCycle))
	})

	It("should count completed cycle tasks per location", func() {
		tracer.StartTask(Task{ID: "1", Kind: KindCycle, Where: "T.actor-0"})
		tracer.StartTask(Task{ID: "2", Kind: KindCycle, Where: "T.actor-1"})
		tracer.StartTask(Task{ID: "3", Kind: KindWait, Where: "T.actor-0"})

		tracer.EndTask(Task{ID: "1"})
		tracer.EndTask(Task{ID: "2"})
		tracer.EndTask(Task{ID: "3"})

		Expect(tracer.Count("T.actor-0")).To(Equal(uint64(1)))
		Expect(tracer.Count("T.actor-1")).To(Equal(uint64(1)))
		Expect(tracer.Total()).To(Equal(uint64(2)))
	})

	It("should ignore tasks that never started", func() {
		tracer.EndTask(Task{ID: "ghost"})

		Expect(tracer.Total()).To(Equal(uint64(0)))
	})

	It("should count every eat cycle of a full run", func() {
		tbl, err := table.MakeBuilder().
			WithNumActors(3).
			WithCyclesPerActor(4).
			Build("T")
		Expect(err).ToNot(HaveOccurred())

		counter := NewCycleCountTracer(tbl, KindIs(KindCycle))
		CollectTrace(tbl, counter)

		_, err = tbl.Run(context.Background())
		Expect(err).ToNot(HaveOccurred())

		Expect(counter.Total()).To(Equal(uint64(12)))
		for i := 0; i < 3; i++ {
			Expect(counter.Count(Location("T", i))).To(Equal(uint64(4)))
		}
	})
})
