package table

import (
	"context"
	"sync/atomic"
)

// arbiter implements PolicyFair. All grants go through a single lock, so an
// actor always receives both of its forks in one step and no partial
// acquisition is ever observable. Waiting requests are served in arrival
// order; a request that has been passed over more than patience times
// reserves its forks so that later arrivals cannot overtake it again.
type arbiter struct {
	t        *Table
	patience int

	requestCh chan *pairRequest
	releaseCh chan *Philosopher
	stopCh    chan struct{}
	doneCh    chan struct{}

	queue []*pairRequest
}

// A pairRequest ends in exactly one of two ways: the arbiter grants the
// pair, or the requester abandons it on cancellation. Both sides settle the
// race by claiming the request; whoever claims first decides its fate.
type pairRequest struct {
	p       *Philosopher
	granted chan struct{}
	settled atomic.Bool
	skips   int
}

// claim marks the request as settled. It returns true for exactly one
// caller.
func (r *pairRequest) claim() bool {
	return r.settled.CompareAndSwap(false, true)
}

func newArbiter(t *Table, patience int) *arbiter {
	return &arbiter{
		t:         t,
		patience:  patience,
		requestCh: make(chan *pairRequest),
		releaseCh: make(chan *Philosopher),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (a *arbiter) AcquirePair(ctx context.Context, p *Philosopher) error {
	req := &pairRequest{
		p:       p,
		granted: make(chan struct{}),
	}

	select {
	case a.requestCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.granted:
		return nil
	case <-ctx.Done():
		if !req.claim() {
			// The arbiter committed to the grant first. Wait for the forks
			// to arrive and return them.
			<-req.granted
			if err := a.ReleasePair(p); err != nil {
				return err
			}
		}

		return ctx.Err()
	}
}

func (a *arbiter) ReleasePair(p *Philosopher) error {
	for _, f := range []*Fork{p.left, p.right} {
		a.t.invokeForkHook(HookPosForkRelease, p, f)
		if err := f.Release(p.id, p.cycle()); err != nil {
			return err
		}
	}

	select {
	case a.releaseCh <- p:
	case <-a.stopCh:
	}

	return nil
}

// stop ends the serve goroutine and waits for it, so that no dispatch is
// still touching forks when the run reports its final state.
func (a *arbiter) stop() {
	close(a.stopCh)
	<-a.doneCh
}

func (a *arbiter) serve() {
	defer close(a.doneCh)

	for {
		select {
		case req := <-a.requestCh:
			a.queue = append(a.queue, req)
			a.dispatch()
		case <-a.releaseCh:
			a.dispatch()
		case <-a.stopCh:
			return
		}
	}
}

// dispatch scans the wait queue in arrival order and grants every request
// whose two forks are free and not reserved by a starved request ahead of
// it. Settled requests, grantable or not, leave the queue.
func (a *arbiter) dispatch() {
	reserved := make(map[int]bool)
	remaining := a.queue[:0]

	for _, req := range a.queue {
		if a.tryGrant(req, reserved) {
			continue
		}

		if req.settled.Load() {
			continue
		}

		req.skips++
		if req.skips > a.patience {
			reserved[req.p.left.ID()] = true
			reserved[req.p.right.ID()] = true
		}

		remaining = append(remaining, req)
	}

	a.queue = remaining
}

func (a *arbiter) tryGrant(req *pairRequest, reserved map[int]bool) bool {
	p := req.p

	if reserved[p.left.ID()] || reserved[p.right.ID()] {
		return false
	}

	// A releasing actor clears the holder record just before it returns the
	// token, so the token is the authoritative free/held state.
	if !p.left.TryAcquire(p.id, p.cycle()) {
		return false
	}

	if !p.right.TryAcquire(p.id, p.cycle()) {
		mustReleaseFork(p.left, p.id, p.cycle())
		return false
	}

	// Claim only once the grant can no longer fail. A request abandoned
	// before this point gives its forks straight back; no observer saw
	// them held because no hook has fired yet.
	if !req.claim() {
		mustReleaseFork(p.left, p.id, p.cycle())
		mustReleaseFork(p.right, p.id, p.cycle())

		return true
	}

	a.t.invokeForkHook(HookPosForkAcquire, p, p.left)
	a.t.invokeForkHook(HookPosForkAcquire, p, p.right)

	close(req.granted)

	return true
}

func mustReleaseFork(f *Fork, actorID, cycle int) {
	if err := f.Release(actorID, cycle); err != nil {
		panic(err)
	}
}
