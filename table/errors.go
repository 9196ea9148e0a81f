package table

import (
	"fmt"
	"time"
)

// A ConfigError reports an invalid table configuration. It is always detected
// before any actor starts running.
type ConfigError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%d, %s",
		e.Field, e.Value, e.Reason)
}

// An OwnershipViolation reports that a fork was acquired or released in a way
// that breaks the single-holder contract. It is a programming error and
// aborts the run.
type OwnershipViolation struct {
	ActorID int
	ForkID  int
	Cycle   int
	Op      string
	Holder  int
}

func (e *OwnershipViolation) Error() string {
	return fmt.Sprintf(
		"ownership violation: actor %d cannot %s fork %d "+
			"(cycle %d, holder %d)",
		e.ActorID, e.Op, e.ForkID, e.Cycle, e.Holder)
}

// A DeadlockError reports that no actor made progress within the configured
// stall window. The run terminates early with partial results rather than
// hanging.
type DeadlockError struct {
	Stall time.Duration
	Stuck []StuckActor
}

// A StuckActor describes one actor at the moment a stall was detected.
type StuckActor struct {
	ActorID   int
	State     State
	Completed int
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf(
		"deadlock suspected: no progress for %s, %d actors not done",
		e.Stall, len(e.Stuck))
}
