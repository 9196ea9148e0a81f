package table

import (
	"context"
	"sync/atomic"
)

const freeHolder = -1

// A Fork is one exclusive resource on the table. It is shared by its two
// ring-adjacent actors and can be held by at most one of them at a time.
//
// The free/held state lives in a single-token channel so that a blocking
// acquisition can be abandoned on context cancellation. The holder record is
// kept separately to detect ownership violations.
type Fork struct {
	id     int
	token  chan struct{}
	holder atomic.Int32
}

func newFork(id int) *Fork {
	f := &Fork{
		id:    id,
		token: make(chan struct{}, 1),
	}
	f.token <- struct{}{}
	f.holder.Store(freeHolder)

	return f
}

// ID returns the position of the fork in the ring.
func (f *Fork) ID() int {
	return f.id
}

// Holder returns the ID of the actor currently holding the fork, or -1 if
// the fork is free.
func (f *Fork) Holder() int {
	return int(f.holder.Load())
}

// Acquire blocks until the calling actor takes exclusive ownership of the
// fork or the context is cancelled. Acquiring a fork that the actor already
// holds is an OwnershipViolation.
func (f *Fork) Acquire(ctx context.Context, actorID, cycle int) error {
	if f.Holder() == actorID {
		return &OwnershipViolation{
			ActorID: actorID,
			ForkID:  f.id,
			Cycle:   cycle,
			Op:      "acquire",
			Holder:  actorID,
		}
	}

	select {
	case <-f.token:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.mustRecordHolder(actorID, cycle)

	return nil
}

// TryAcquire attempts to take exclusive ownership of the fork without
// blocking. It returns false if the fork is currently held.
func (f *Fork) TryAcquire(actorID, cycle int) bool {
	select {
	case <-f.token:
	default:
		return false
	}

	f.mustRecordHolder(actorID, cycle)

	return true
}

// Release returns the fork to the free state. Only the current holder may
// release a fork; violating this is an OwnershipViolation.
func (f *Fork) Release(actorID, cycle int) error {
	if !f.holder.CompareAndSwap(int32(actorID), freeHolder) {
		return &OwnershipViolation{
			ActorID: actorID,
			ForkID:  f.id,
			Cycle:   cycle,
			Op:      "release",
			Holder:  f.Holder(),
		}
	}

	f.token <- struct{}{}

	return nil
}

// mustRecordHolder marks the fork as held. The caller must own the token, so
// observing a holder here means a release bypassed the holder record.
func (f *Fork) mustRecordHolder(actorID, cycle int) {
	if prev := f.holder.Swap(int32(actorID)); prev != freeHolder {
		panic(&OwnershipViolation{
			ActorID: actorID,
			ForkID:  f.id,
			Cycle:   cycle,
			Op:      "acquire",
			Holder:  int(prev),
		})
	}
}
