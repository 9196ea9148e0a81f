package table

import "log"

// A StateLogger is a hook that prints actor state transitions and fork
// movements using a given logger.
type StateLogger struct {
	*log.Logger
}

// NewStateLogger creates a StateLogger.
func NewStateLogger(logger *log.Logger) *StateLogger {
	return &StateLogger{Logger: logger}
}

// Func writes a log line for the triggered hook position.
func (l *StateLogger) Func(ctx HookCtx) {
	name := ""
	if named, ok := ctx.Domain.(Named); ok {
		name = named.Name()
	}

	switch item := ctx.Item.(type) {
	case StateChange:
		l.Printf("%s: actor %d %s -> %s, cycle %d",
			name, item.ActorID, item.From, item.To, item.Cycle)
	case ForkEvent:
		verb := "takes"
		if ctx.Pos == HookPosForkRelease {
			verb = "puts down"
		}
		l.Printf("%s: actor %d %s fork %d, cycle %d",
			name, item.ActorID, verb, item.ForkID, item.Cycle)
	}
}
