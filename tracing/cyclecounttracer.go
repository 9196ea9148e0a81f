package tracing

import "sync"

// CycleCountTracer counts the completed tasks that pass its filter, broken
// down by location. With the KindIs(KindCycle) filter it produces the
// per-actor eat totals.
type CycleCountTracer struct {
	timeTeller TimeTeller
	filter     TaskFilter

	lock          sync.Mutex
	inflightTasks map[string]Task
	count         map[string]uint64
}

// NewCycleCountTracer creates a new CycleCountTracer.
func NewCycleCountTracer(
	timeTeller TimeTeller,
	filter TaskFilter,
) *CycleCountTracer {
	return &CycleCountTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]Task),
		count:         make(map[string]uint64),
	}
}

// Count returns the number of completed tasks recorded for a location.
func (t *CycleCountTracer) Count(where string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.count[where]
}

// Total returns the number of completed tasks across all locations.
func (t *CycleCountTracer) Total() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	total := uint64(0)
	for _, c := range t.count {
		total += c
	}

	return total
}

// StartTask records the start of a task.
func (t *CycleCountTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.Now()

	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[task.ID] = task
	t.lock.Unlock()
}

// StepTask does nothing.
func (t *CycleCountTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask counts the completed task.
func (t *CycleCountTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	t.count[originalTask.Where]++
	delete(t.inflightTasks, task.ID)
}
