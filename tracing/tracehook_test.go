package tracing

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/tablesim/table"
)

var _ = Describe("TraceHook", func() {
	var (
		mockCtrl *gomock.Controller
		tracer   *MockTracer
		tbl      *table.Table
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		tracer = NewMockTracer(mockCtrl)

		var err error
		tbl, err = table.MakeBuilder().
			WithNumActors(2).
			WithIDGenerator(table.NewSequentialIDGenerator()).
			Build("T")
		Expect(err).ToNot(HaveOccurred())

		CollectTrace(tbl, tracer)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should refuse to attach the same tracer twice", func() {
		Expect(func() {
			CollectTrace(tbl, tracer)
		}).To(Panic())
	})

	It("should start a wait task when an actor turns hungry", func() {
		tracer.EXPECT().StartTask(Task{
			ID:       "T.a0.c0.wait",
			ParentID: "T.a0.c0.cycle",
			Kind:     KindWait,
			What:     "hungry",
			Where:    "T.actor-0",
		})

		tbl.InvokeHook(table.HookCtx{
			Domain: tbl,
			Pos:    table.HookPosStateChange,
			Item: table.StateChange{
				ActorID: 0,
				From:    table.StateThinking,
				To:      table.StateHungry,
			},
		})
	})

	It("should end the wait and start a cycle when eating begins", func() {
		tracer.EXPECT().EndTask(Task{ID: "T.a1.c2.wait"})
		tracer.EXPECT().StartTask(Task{
			ID:    "T.a1.c2.cycle",
			Kind:  KindCycle,
			What:  "eat",
			Where: "T.actor-1",
		})

		tbl.InvokeHook(table.HookCtx{
			Domain: tbl,
			Pos:    table.HookPosStateChange,
			Item: table.StateChange{
				ActorID: 1,
				From:    table.StateHungry,
				To:      table.StateEating,
				Cycle:   2,
			},
		})
	})

	It("should end the previous cycle when eating stops", func() {
		tracer.EXPECT().EndTask(Task{ID: "T.a0.c0.cycle"})

		tbl.InvokeHook(table.HookCtx{
			Domain: tbl,
			Pos:    table.HookPosStateChange,
			Item: table.StateChange{
				ActorID: 0,
				From:    table.StateEating,
				To:      table.StateThinking,
				Cycle:   1,
			},
		})
	})

	It("should trace fork holding intervals", func() {
		tracer.EXPECT().StartTask(Task{
			ID:       "T.a0.f1.c0.hold",
			ParentID: "T.a0.c0.cycle",
			Kind:     KindHold,
			What:     "fork-1",
			Where:    "T.actor-0",
		})
		tracer.EXPECT().EndTask(Task{ID: "T.a0.f1.c0.hold"})

		forkEvent := table.ForkEvent{ActorID: 0, ForkID: 1, Cycle: 0}
		tbl.InvokeHook(table.HookCtx{
			Domain: tbl,
			Pos:    table.HookPosForkAcquire,
			Item:   forkEvent,
		})
		tbl.InvokeHook(table.HookCtx{
			Domain: tbl,
			Pos:    table.HookPosForkRelease,
			Item:   forkEvent,
		})
	})
})

// recordingTracer keeps the IDs of every task it saw start and end.
type recordingTracer struct {
	mu      sync.Mutex
	started map[string]Task
	ended   map[string]bool
}

func newRecordingTracer() *recordingTracer {
	return &recordingTracer{
		started: make(map[string]Task),
		ended:   make(map[string]bool),
	}
}

func (t *recordingTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.started[task.ID] = task
}

func (t *recordingTracer) StepTask(_ Task) {
	// Do nothing
}

func (t *recordingTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ended[task.ID] = true
}

func (t *recordingTracer) openTasks(kind string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var open []string
	for id, task := range t.started {
		if task.Kind == kind && !t.ended[id] {
			open = append(open, id)
		}
	}

	return open
}

var _ = Describe("TraceHook on a cancelled run", func() {
	It("should end every cycle task it started", func() {
		tbl, err := table.MakeBuilder().
			WithNumActors(5).
			WithCyclesPerActor(1 << 30).
			WithEatTime(time.Millisecond).
			Build("T")
		Expect(err).ToNot(HaveOccurred())

		tracer := newRecordingTracer()
		CollectTrace(tbl, tracer)

		ctx, cancel := context.WithTimeout(
			context.Background(), 10*time.Millisecond)
		defer cancel()

		outcome, err := tbl.Run(ctx)

		Expect(err).ToNot(HaveOccurred())
		Expect(outcome.Cancelled).To(BeTrue())
		Expect(tracer.openTasks(KindCycle)).To(BeEmpty())
	})
})
