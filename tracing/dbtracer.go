package tracing

import (
	"sync"

	"github.com/sarchlab/tablesim/datarecording"
)

type taskTableEntry struct {
	ID        string  `json:"id"`
	ParentID  string  `json:"parent_id"`
	Kind      string  `json:"kind"`
	What      string  `json:"what"`
	Where     string  `json:"where"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// DBTracer is a tracer that stores completed tasks through a
// datarecording.DataRecorder, so that a run can be inspected after the fact
// with any SQLite client.
type DBTracer struct {
	timeTeller TimeTeller
	backend    datarecording.DataRecorder

	mu           sync.Mutex
	tracingTasks map[string]Task
	tableCreated bool
}

const traceTableName = "trace"

// NewDBTracer creates a new DBTracer.
func NewDBTracer(
	timeTeller TimeTeller,
	backend datarecording.DataRecorder,
) *DBTracer {
	return &DBTracer{
		timeTeller:   timeTeller,
		backend:      backend,
		tracingTasks: make(map[string]Task),
	}
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.startingTaskMustBeValid(task)

	task.StartTime = t.timeTeller.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracingTasks[task.ID] = task
}

func (t *DBTracer) startingTaskMustBeValid(task Task) {
	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	if task.Where == "" {
		panic("task location must be set")
	}
}

// StepTask does nothing for now.
func (t *DBTracer) StepTask(_ Task) {
	// Do nothing.
}

// EndTask writes the task into the database.
func (t *DBTracer) EndTask(task Task) {
	endTime := t.timeTeller.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}
	delete(t.tracingTasks, task.ID)

	if !t.tableCreated {
		t.backend.CreateTable(traceTableName, taskTableEntry{})
		t.tableCreated = true
	}

	t.backend.InsertData(traceTableName, taskTableEntry{
		ID:        originalTask.ID,
		ParentID:  originalTask.ParentID,
		Kind:      originalTask.Kind,
		What:      originalTask.What,
		Where:     originalTask.Where,
		StartTime: originalTask.StartTime.Seconds(),
		EndTime:   endTime.Seconds(),
	})
}
