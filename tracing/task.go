package tracing

import "time"

// A TaskStep is a milestone in the processing of a task.
type TaskStep struct {
	Time time.Duration `json:"time"`
	What string        `json:"what"`
}

// A Task is a time span in the life of an actor: one eat cycle, one hungry
// wait, or one fork-holding interval.
type Task struct {
	ID        string        `json:"id"`
	ParentID  string        `json:"parent_id"`
	Kind      string        `json:"kind"`
	What      string        `json:"what"`
	Where     string        `json:"where"`
	StartTime time.Duration `json:"start_time"`
	EndTime   time.Duration `json:"end_time"`
	Steps     []TaskStep    `json:"steps"`
}

// Task kinds emitted by the trace hook.
const (
	KindCycle = "cycle"
	KindWait  = "wait"
	KindHold  = "hold"
)

// TaskFilter is a function that can filter interesting tasks. If this
// function returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// AcceptAll is a TaskFilter that keeps every task.
func AcceptAll(_ Task) bool {
	return true
}

// KindIs returns a TaskFilter that keeps tasks of one kind.
func KindIs(kind string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind
	}
}
