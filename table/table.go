package table

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"
)

// A Builder can build tables. Every call to Build produces a fully
// independent table; two tables built with the same parameters share no
// mutable state.
type Builder struct {
	numActors      int
	cyclesPerActor int
	policy         Policy
	patience       int
	maxStall       time.Duration
	thinkTime      time.Duration
	eatTime        time.Duration
	seed           int64
	idGen          IDGenerator
}

// MakeBuilder creates a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numActors:      5,
		cyclesPerActor: 3,
		policy:         PolicyOrdered,
		patience:       2,
		maxStall:       10 * time.Second,
		seed:           1,
	}
}

// WithNumActors sets the number of actors, and therefore forks, on the
// table.
func (b Builder) WithNumActors(n int) Builder {
	b.numActors = n
	return b
}

// WithCyclesPerActor sets how many eat cycles each actor performs.
func (b Builder) WithCyclesPerActor(c int) Builder {
	b.cyclesPerActor = c
	return b
}

// WithPolicy selects the arbitration policy.
func (b Builder) WithPolicy(p Policy) Builder {
	b.policy = p
	return b
}

// WithPatience sets how many times a waiting actor can be passed over before
// the fair policy reserves its forks. Only meaningful with PolicyFair.
func (b Builder) WithPatience(patience int) Builder {
	b.patience = patience
	return b
}

// WithMaxStall sets the progress timeout after which a run is reported as a
// suspected deadlock. A zero duration disables the watchdog.
func (b Builder) WithMaxStall(d time.Duration) Builder {
	b.maxStall = d
	return b
}

// WithThinkTime sets the upper bound of the jittered thinking delay.
func (b Builder) WithThinkTime(d time.Duration) Builder {
	b.thinkTime = d
	return b
}

// WithEatTime sets the upper bound of the jittered eating delay.
func (b Builder) WithEatTime(d time.Duration) Builder {
	b.eatTime = d
	return b
}

// WithSeed sets the seed for the per-actor delay jitter.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithIDGenerator sets the generator used for the table ID.
func (b Builder) WithIDGenerator(g IDGenerator) Builder {
	b.idGen = g
	return b
}

// Build builds the table.
func (b Builder) Build(name string) (*Table, error) {
	if b.numActors < 2 {
		return nil, &ConfigError{
			Field:  "actors",
			Value:  b.numActors,
			Reason: "at least 2 actors are required to share forks",
		}
	}

	if b.cyclesPerActor < 1 {
		return nil, &ConfigError{
			Field:  "cycles",
			Value:  b.cyclesPerActor,
			Reason: "each actor must perform at least 1 cycle",
		}
	}

	idGen := b.idGen
	if idGen == nil {
		idGen = NewXIDGenerator()
	}

	t := &Table{
		name:           name,
		id:             idGen.Generate(),
		policy:         b.policy,
		cyclesPerActor: b.cyclesPerActor,
		maxStall:       b.maxStall,
		thinkTime:      b.thinkTime,
		eatTime:        b.eatTime,
	}

	t.forks = make([]*Fork, b.numActors)
	for i := range t.forks {
		t.forks[i] = newFork(i)
	}

	t.actors = make([]*Philosopher, b.numActors)
	for i := range t.actors {
		t.actors[i] = &Philosopher{
			id:     i,
			name:   actorName(i),
			left:   t.forks[i],
			right:  t.forks[(i+1)%b.numActors],
			cycles: b.cyclesPerActor,
			table:  t,
			rng:    rand.New(rand.NewSource(b.seed + int64(i))),
		}
	}

	switch b.policy {
	case PolicyOrdered:
		t.acquirer = &orderedAcquirer{t: t}
	case PolicyFair:
		t.arbiter = newArbiter(t, b.patience)
		t.acquirer = t.arbiter
	default:
		return nil, &ConfigError{
			Field:  "policy",
			Value:  int(b.policy),
			Reason: "unknown arbitration policy",
		}
	}

	return t, nil
}

func actorName(i int) string {
	if i < len(defaultActorNames) {
		return defaultActorNames[i]
	}

	return fmt.Sprintf("Philosopher%d", i)
}

// A Table is the ring of forks and actors plus the immutable run
// configuration. Hooks must be registered before Run is called.
type Table struct {
	HookableBase

	name string
	id   string

	policy         Policy
	cyclesPerActor int
	maxStall       time.Duration
	thinkTime      time.Duration
	eatTime        time.Duration

	forks    []*Fork
	actors   []*Philosopher
	acquirer pairAcquirer
	arbiter  *arbiter

	started   atomic.Bool
	startTime time.Time
	progress  atomic.Uint64
}

// Name returns the name of the table.
func (t *Table) Name() string {
	return t.name
}

// ID returns the unique ID of the table.
func (t *Table) ID() string {
	return t.id
}

// Policy returns the arbitration policy the table runs under.
func (t *Table) Policy() Policy {
	return t.policy
}

// CyclesPerActor returns the per-actor cycle budget.
func (t *Table) CyclesPerActor() int {
	return t.cyclesPerActor
}

// Forks returns the forks in ring order.
func (t *Table) Forks() []*Fork {
	return t.forks
}

// Actors returns the actors in ring order.
func (t *Table) Actors() []*Philosopher {
	return t.actors
}

// Now returns the time elapsed since the run started. It reports 0 before
// Run is called.
func (t *Table) Now() time.Duration {
	if !t.started.Load() {
		return 0
	}

	return time.Since(t.startTime)
}

func (t *Table) invokeForkHook(pos *HookPos, p *Philosopher, f *Fork) {
	if t.NumHooks() == 0 {
		return
	}

	t.InvokeHook(HookCtx{
		Domain: t,
		Pos:    pos,
		Item: ForkEvent{
			ActorID: p.id,
			ForkID:  f.id,
			Cycle:   p.cycle(),
		},
	})
}
