package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/tablesim/table"
)

// NamedHookable represents something that both has a name and can be hooked.
type NamedHookable interface {
	table.Named
	table.Hookable
}

// CollectTrace lets the tracer collect traces from a table. Attaching the
// same tracer to a domain twice is a programming error.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.tracer == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(&traceHook{tracer: tracer})
}

// A traceHook translates the table's hook stream into task starts and ends.
// Every eat cycle becomes a "cycle" task, every hungry period a "wait" task,
// and every fork-holding interval a "hold" task parented to its cycle.
type traceHook struct {
	tracer Tracer
}

func (h *traceHook) Func(ctx table.HookCtx) {
	name := ""
	if named, ok := ctx.Domain.(table.Named); ok {
		name = named.Name()
	}

	switch item := ctx.Item.(type) {
	case table.StateChange:
		h.stateChange(name, item)
	case table.ForkEvent:
		h.forkEvent(name, ctx.Pos, item)
	}
}

func (h *traceHook) stateChange(domain string, item table.StateChange) {
	switch item.To {
	case table.StateHungry:
		h.tracer.StartTask(Task{
			ID:       waitTaskID(domain, item.ActorID, item.Cycle),
			ParentID: cycleTaskID(domain, item.ActorID, item.Cycle),
			Kind:     KindWait,
			What:     "hungry",
			Where:    Location(domain, item.ActorID),
		})
	case table.StateEating:
		h.tracer.EndTask(Task{
			ID: waitTaskID(domain, item.ActorID, item.Cycle),
		})
		h.tracer.StartTask(Task{
			ID:    cycleTaskID(domain, item.ActorID, item.Cycle),
			Kind:  KindCycle,
			What:  "eat",
			Where: Location(domain, item.ActorID),
		})
	}

	if item.From == table.StateEating {
		h.tracer.EndTask(Task{
			ID: cycleTaskID(domain, item.ActorID, item.Cycle-1),
		})
	}
}

func (h *traceHook) forkEvent(
	domain string,
	pos *table.HookPos,
	item table.ForkEvent,
) {
	id := holdTaskID(domain, item.ActorID, item.ForkID, item.Cycle)

	switch pos {
	case table.HookPosForkAcquire:
		h.tracer.StartTask(Task{
			ID:       id,
			ParentID: cycleTaskID(domain, item.ActorID, item.Cycle),
			Kind:     KindHold,
			What:     fmt.Sprintf("fork-%d", item.ForkID),
			Where:    Location(domain, item.ActorID),
		})
	case table.HookPosForkRelease:
		h.tracer.EndTask(Task{ID: id})
	}
}

// Location names the trace location of one actor of a domain. It is the
// Where value of every task the trace hook emits for that actor.
func Location(domain string, actorID int) string {
	return fmt.Sprintf("%s.actor-%d", domain, actorID)
}

func cycleTaskID(domain string, actorID, cycle int) string {
	return fmt.Sprintf("%s.a%d.c%d.cycle", domain, actorID, cycle)
}

func waitTaskID(domain string, actorID, cycle int) string {
	return fmt.Sprintf("%s.a%d.c%d.wait", domain, actorID, cycle)
}

func holdTaskID(domain string, actorID, forkID, cycle int) string {
	return fmt.Sprintf("%s.a%d.f%d.c%d.hold", domain, actorID, forkID, cycle)
}
