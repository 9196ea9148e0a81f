package tracing

import (
	"fmt"
	"os"
	"sync"

	"github.com/tebeka/atexit"
)

// CSVTracer writes completed tasks to a CSV file. The file is flushed when
// the buffer fills and at process exit.
type CSVTracer struct {
	timeTeller TimeTeller
	path       string
	file       *os.File

	mu            sync.Mutex
	inflightTasks map[string]Task
	tasks         []Task
	bufferSize    int
}

// NewCSVTracer creates a new CSVTracer.
func NewCSVTracer(timeTeller TimeTeller, path string) *CSVTracer {
	return &CSVTracer{
		timeTeller:    timeTeller,
		path:          path,
		inflightTasks: make(map[string]Task),
		bufferSize:    1000,
	}
}

// Init creates the tracing csv file. If the file already exists, it will be
// overwritten.
func (t *CSVTracer) Init() {
	file, err := os.Create(t.path)
	if err != nil {
		panic(err)
	}
	t.file = file

	fmt.Fprintf(file, "ID, ParentID, Kind, What, Where, Start, End\n")

	atexit.Register(func() {
		t.Flush()
		err := t.file.Close()
		if err != nil {
			panic(err)
		}
	})
}

// StartTask records the task start time.
func (t *CSVTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.Now()

	t.mu.Lock()
	t.inflightTasks[task.ID] = task
	t.mu.Unlock()
}

// StepTask does nothing.
func (t *CSVTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask buffers the completed task for writing.
func (t *CSVTracer) EndTask(task Task) {
	endTime := t.timeTeller.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}
	delete(t.inflightTasks, task.ID)

	originalTask.EndTime = endTime
	t.tasks = append(t.tasks, originalTask)
	if len(t.tasks) >= t.bufferSize {
		t.flushLocked()
	}
}

// Flush writes the buffered tasks to the CSV file.
func (t *CSVTracer) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.flushLocked()
}

func (t *CSVTracer) flushLocked() {
	for _, task := range t.tasks {
		fmt.Fprintf(t.file, "%s, %s, %s, %s, %s, %.9f, %.9f\n",
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Where,
			task.StartTime.Seconds(),
			task.EndTime.Seconds(),
		)
	}

	t.tasks = nil
}
