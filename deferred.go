package deferred

import "github.com/google/uuid"

type state uint8

const (
	statePending state = iota
	stateRunning
	stateFulfilled
	stateRejected
	stateCancelled
)

func (s state) terminal() bool {
	return s == stateFulfilled || s == stateRejected || s == stateCancelled
}

func (s state) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateRunning:
		return "running"
	case stateFulfilled:
		return "fulfilled"
	case stateRejected:
		return "rejected"
	case stateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Deferred is a placeholder for a value produced later by a [Producer]
// or by one of the combinators ([Deferred.Then], [Deferred.Catch],
// [Deferred.Finally], [WhenAll], [WhenAny], [WhenSome]). A Deferred is
// only ever useful bound to the [Barrier] that constructed it (directly,
// via [Constant]/[Delay]/an adapter, or by inheriting its parents'
// barrier through a combinator); see the package doc for why deferred
// values cannot cross barriers.
//
// The zero Deferred is not usable; values are always created through a
// constructor or combinator.
type Deferred struct {
	id      string
	barrier *Barrier

	state  state
	result any
	err    error

	producer Producer

	parents []*Deferred

	// Exactly one of child or children is used, according to shared.
	child    *Deferred
	children []*Deferred
	shared   bool

	// reactions are invoked by the Loop exactly once each, when this
	// node transitions into a terminal state. A non-shared node has at
	// most one: its single child's combinator. A shared node may carry
	// one per child, since Share lets more than one consumer adopt it.
	reactions []func(*Deferred)

	cancelRequested bool
	reachable       bool
	started         bool
}

func newDeferred(b *Barrier) *Deferred {
	return &Deferred{id: uuid.NewString(), barrier: b}
}

// ID returns the process-unique, stable identifier of d, for diagnostics
// only; it carries no semantic meaning.
func (d *Deferred) ID() string { return d.id }

func (d *Deferred) isTerminal() bool { return d.state.terminal() }

// checkBarrier panics with Kind [KindCrossBarrier] if d belongs to a
// barrier that has already torn down. This is the primary defense
// against passing a deferred value across a synchronisation barrier
// (here: reusing one after its barrier already returned from
// Synchronize).
func (d *Deferred) checkBarrier() {
	if d.barrier != nil && d.barrier.closed {
		panic(wrapError(KindCrossBarrier, "deferred value used outside its synchronisation barrier", nil))
	}
}

// adopt registers child as d's consumer, enforcing invariant 1 (at most
// one non-shared child), propagating d's barrier to child, and wiring
// onSettled to run once d settles. Called by every combinator exactly
// once per (parent, child) edge.
func (d *Deferred) adopt(child *Deferred, onSettled func(*Deferred)) {
	d.checkBarrier()

	if d.shared {
		d.children = append(d.children, child)
	} else {
		if d.child != nil {
			panic(wrapError(KindOwnership, "non-shared deferred value already has a consumer", nil))
		}

		d.child = child
	}

	switch {
	case child.barrier == nil:
		child.barrier = d.barrier
	case d.barrier != nil && child.barrier != d.barrier:
		panic(wrapError(KindCrossBarrier, "joined deferred values belong to different synchronisation barriers", nil))
	}

	child.parents = append(child.parents, d)

	d.react(onSettled)
}

// settleFulfilled transitions d to fulfilled with value v. A no-op if d
// is already terminal.
func (d *Deferred) settleFulfilled(v any) {
	if d.isTerminal() {
		return
	}

	d.state = stateFulfilled
	d.result = v
	d.fireSettle()
}

// settleRejected transitions d to rejected with err. A no-op if d is
// already terminal.
func (d *Deferred) settleRejected(err error) {
	if d.isTerminal() {
		return
	}

	d.state = stateRejected
	d.err = err
	d.fireSettle()
}

// settleCancelled transitions d to cancelled. A no-op if d is already
// terminal.
func (d *Deferred) settleCancelled(reason error) {
	if d.isTerminal() {
		return
	}

	d.state = stateCancelled
	d.err = reason
	d.fireSettle()
}

func (d *Deferred) fireSettle() {
	if d.barrier != nil {
		d.barrier.enqueueSettled(d)
	}
}

// runOnSettle invokes every reaction registered for d exactly once.
// Invoked by the Loop while draining the ready queue, never directly.
func (d *Deferred) runOnSettle() {
	reactions := d.reactions
	d.reactions = nil

	for _, cb := range reactions {
		cb(d)
	}
}

// react registers f to run once, when d settles. If d has already
// settled, f still runs on a future Loop tick rather than synchronously
// here; every reaction runs as part of some tick, never as a side
// effect of the call that registered it.
func (d *Deferred) react(f func(*Deferred)) {
	d.reactions = append(d.reactions, f)

	if d.isTerminal() && d.barrier != nil {
		d.barrier.loop.ready.push(d)
	}
}

// exclusiveParents returns the parents of d whose only (non-shared)
// child is d: the set the cancellation engine walks next when d is
// dropped. Shared parents are never exclusive to a single child.
func (d *Deferred) exclusiveParents() []*Deferred {
	var out []*Deferred

	for _, p := range d.parents {
		if !p.shared && p.child == d {
			out = append(out, p)
		}
	}

	return out
}
