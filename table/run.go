package table

import (
	"context"
	"errors"
	"sync"
	"time"
)

// An Outcome reports what every actor accomplished during a run, together
// with any anomaly the run detected.
type Outcome struct {
	// Completed holds the number of finished eat cycles per actor, indexed
	// by actor position.
	Completed []int

	// Duration is the wall time of the run.
	Duration time.Duration

	// Cancelled is true when the run stopped because the caller's context
	// was cancelled.
	Cancelled bool

	// Deadlock is set when the stall watchdog ended the run early. The
	// completion counts are partial in that case.
	Deadlock *DeadlockError

	// Violation is set when the run aborted on a broken ownership
	// contract.
	Violation *OwnershipViolation
}

// Run starts all actors concurrently and blocks until every actor finishes
// its cycle budget, the context is cancelled, or an anomaly ends the run.
// Cancellation stops new acquisitions and waits for in-flight releases; no
// fork is left held. A table can only run once.
func (t *Table) Run(ctx context.Context) (Outcome, error) {
	if !t.started.CompareAndSwap(false, true) {
		return Outcome{}, errors.New("table " + t.name + " already ran")
	}

	t.startTime = time.Now()

	if t.arbiter != nil {
		go t.arbiter.serve()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		violationOnce sync.Once
		violation     *OwnershipViolation
	)
	abort := func(v *OwnershipViolation) {
		violationOnce.Do(func() {
			violation = v
			cancel()
		})
	}

	watchdogDone := make(chan struct{})
	deadlockCh := make(chan *DeadlockError, 1)
	if t.maxStall > 0 {
		go t.watchProgress(runCtx, cancel, deadlockCh, watchdogDone)
	} else {
		close(watchdogDone)
	}

	var wg sync.WaitGroup
	for _, p := range t.actors {
		wg.Add(1)
		go func(p *Philosopher) {
			defer wg.Done()

			if err := t.runActor(runCtx, p); err != nil {
				var v *OwnershipViolation
				if errors.As(err, &v) {
					abort(v)
				}
			}
		}(p)
	}
	wg.Wait()

	cancel()
	<-watchdogDone

	if t.arbiter != nil {
		t.arbiter.stop()
	}

	outcome := Outcome{
		Completed: make([]int, len(t.actors)),
		Duration:  time.Since(t.startTime),
		Cancelled: ctx.Err() != nil,
		Violation: violation,
	}
	for i, p := range t.actors {
		outcome.Completed[i] = p.Completed()
	}

	select {
	case outcome.Deadlock = <-deadlockCh:
	default:
	}

	if violation != nil {
		return outcome, violation
	}

	return outcome, nil
}

func (t *Table) runActor(ctx context.Context, p *Philosopher) error {
	for i := 0; i < p.cycles; i++ {
		p.setState(StateThinking)
		p.pause(ctx.Done(), t.thinkTime)

		if ctx.Err() != nil {
			return nil
		}

		p.setState(StateHungry)
		if err := t.acquirer.AcquirePair(ctx, p); err != nil {
			if ctx.Err() != nil && !isViolation(err) {
				return nil
			}

			return err
		}
		t.progress.Add(1)

		p.setState(StateEating)
		p.pause(nil, t.eatTime)

		// Always return the forks, even when the run was cancelled while
		// eating.
		err := t.acquirer.ReleasePair(p)

		p.completed.Add(1)
		t.progress.Add(1)

		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			// Leave Eating before stopping so observers see the finished
			// cycle even on a cancelled run.
			p.setState(StateThinking)
			return nil
		}
	}

	p.setState(StateDone)

	return nil
}

func isViolation(err error) bool {
	var v *OwnershipViolation
	return errors.As(err, &v)
}

// watchProgress ends the run early when no actor makes progress for the
// configured stall window. A stall is a heuristic, not a proof: the run is
// reported as a suspected deadlock with partial results.
func (t *Table) watchProgress(
	ctx context.Context,
	cancel context.CancelFunc,
	deadlockCh chan<- *DeadlockError,
	done chan<- struct{},
) {
	defer close(done)

	interval := t.maxStall / 8
	if interval < time.Millisecond {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastProgress := t.progress.Load()
	lastChange := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current := t.progress.Load()
		if current != lastProgress {
			lastProgress = current
			lastChange = time.Now()

			continue
		}

		if time.Since(lastChange) < t.maxStall {
			continue
		}

		deadlock := &DeadlockError{Stall: t.maxStall}
		for _, p := range t.actors {
			if p.State() == StateDone {
				continue
			}

			deadlock.Stuck = append(deadlock.Stuck, StuckActor{
				ActorID:   p.ID(),
				State:     p.State(),
				Completed: p.Completed(),
			})
		}

		if len(deadlock.Stuck) == 0 {
			// Every actor finished between the sample and now.
			return
		}

		deadlockCh <- deadlock
		cancel()

		return
	}
}
