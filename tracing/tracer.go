package tracing

import "time"

// A Tracer can collect task traces.
type Tracer interface {
	StartTask(task Task)
	StepTask(task Task)
	EndTask(task Task)
}

// TimeTeller can be used to get the time elapsed in the current run.
type TimeTeller interface {
	Now() time.Duration
}
