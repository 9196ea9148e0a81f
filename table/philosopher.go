package table

import (
	"math/rand"
	"sync/atomic"
	"time"
)

// State is the position of an actor in its think-eat cycle.
type State int

// The states an actor walks through. Hungry is the only suspend point: the
// actor stays Hungry until both adjacent forks are acquired.
const (
	StateThinking State = iota
	StateHungry
	StateEating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateThinking:
		return "Thinking"
	case StateHungry:
		return "Hungry"
	case StateEating:
		return "Eating"
	case StateDone:
		return "Done"
	}

	return "Unknown"
}

// A StateChange is the hook item delivered at HookPosStateChange.
type StateChange struct {
	ActorID int
	From    State
	To      State
	Cycle   int
}

// A ForkEvent is the hook item delivered at HookPosForkAcquire and
// HookPosForkRelease.
type ForkEvent struct {
	ActorID int
	ForkID  int
	Cycle   int
}

// A Philosopher is one concurrent actor. It repeatedly thinks, acquires its
// two ring-adjacent forks, eats, and releases both forks, until its cycle
// budget is exhausted.
type Philosopher struct {
	id    int
	name  string
	left  *Fork
	right *Fork

	cycles    int
	completed atomic.Int32
	state     atomic.Int32

	table *Table
	rng   *rand.Rand
}

// ID returns the position of the actor in the ring.
func (p *Philosopher) ID() int {
	return p.id
}

// Name returns the name of the actor.
func (p *Philosopher) Name() string {
	return p.name
}

// State returns the current state of the actor.
func (p *Philosopher) State() State {
	return State(p.state.Load())
}

// Completed returns the number of eat cycles the actor has finished.
func (p *Philosopher) Completed() int {
	return int(p.completed.Load())
}

// Left returns the lower-positioned adjacent fork.
func (p *Philosopher) Left() *Fork {
	return p.left
}

// Right returns the higher-positioned adjacent fork, wrapping around the
// ring.
func (p *Philosopher) Right() *Fork {
	return p.right
}

// cycle is the cycle the actor is currently working on.
func (p *Philosopher) cycle() int {
	return p.Completed()
}

func (p *Philosopher) setState(to State) {
	from := State(p.state.Swap(int32(to)))
	if from == to {
		return
	}

	p.table.InvokeHook(HookCtx{
		Domain: p.table,
		Pos:    HookPosStateChange,
		Item: StateChange{
			ActorID: p.id,
			From:    from,
			To:      to,
			Cycle:   p.cycle(),
		},
	})
}

// pause sleeps for a jittered fraction of d, returning early when the
// context is done. A zero d returns immediately.
func (p *Philosopher) pause(done <-chan struct{}, d time.Duration) {
	if d <= 0 {
		return
	}

	jittered := d/2 + time.Duration(p.rng.Int63n(int64(d/2)+1))

	timer := time.NewTimer(jittered)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-done:
	}
}

// defaultActorNames follow the classic formulation of the problem. Tables
// with more seats than names fall back to numbered names.
var defaultActorNames = []string{
	"Plato",
	"Aristotle",
	"Pythagoras",
	"Democritus",
	"Epicurus",
	"Socrates",
	"Heraclitus",
	"Diogenes",
	"Zeno",
	"Thales",
}
