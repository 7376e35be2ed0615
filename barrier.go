package deferred

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Barrier is a synchronisation point: the handle a [Synchronize] call
// passes to its expr function, and the thing every Deferred value it
// constructs or touches is bound to. A Barrier is only ever created by
// Synchronize and only ever driven by its own Loop; there is no public
// constructor.
type Barrier struct {
	loop   *Loop
	nodes  []*Deferred
	closed bool
}

// Option configures a [Synchronize] call.
type Option func(*barrierOptions)

type barrierOptions struct {
	logger hclog.Logger
}

// WithLogger routes a Barrier's diagnostics through l instead of a null
// logger.
func WithLogger(l hclog.Logger) Option {
	return func(o *barrierOptions) { o.logger = l }
}

// Synchronize opens a Barrier, calls expr to build the Deferred graph
// rooted at whatever expr returns, drives that graph to completion, and
// tears the Barrier down before returning the root's outcome as a T.
//
// Nested Synchronize calls (an expr that itself calls Synchronize) work
// by ordinary Go call-stack nesting: the inner Barrier gets its own
// Loop and runs to completion before the outer expr's call to it
// returns, so the outer Loop never observes partial progress on the
// inner graph.
func Synchronize[T any](expr func(b *Barrier) *Deferred, opts ...Option) (T, error) {
	var o barrierOptions
	for _, opt := range opts {
		opt(&o)
	}

	b := &Barrier{loop: newLoop(o.logger)}

	root := expr(b)
	b.bind(root)

	b.loop.logger.Debug("barrier opened", "root", root.id)

	b.loop.run(root)

	b.teardown()

	b.loop.logger.Debug("barrier closed", "root", root.id, "state", root.state.String())

	return extractResult[T](root)
}

// bind marks d, and every Deferred value transitively reachable through
// its parents, as belonging to this Barrier and starts any producer
// that has not already been started. It is idempotent and safe to call
// again on a node already bound to b; besides Synchronize's initial
// call on the root, absorb calls it on any Deferred value a callback
// returns, which is how values built after the initial bind become
// reachable. adopt does not call it.
//
// d always carries the barrier it was constructed under (every
// constructor and combinator sets it at creation time), so a d that
// belongs to some other, still-open barrier is a value leaking across a
// synchronisation barrier: panic with [KindCrossBarrier] rather than
// silently granting it reachability and starting its producer on the
// wrong Loop, which would otherwise settle it on a queue this Barrier
// never drains.
//
// The walk is an explicit work stack rather than self-recursion, so
// binding a long chain built from repeated Then/Catch/Finally calls
// costs one more slice entry per level, not one more call frame.
func (b *Barrier) bind(d *Deferred) {
	stack := []*Deferred{d}

	for len(stack) > 0 {
		last := len(stack) - 1
		cur := stack[last]
		stack = stack[:last]

		if cur == nil || cur.reachable {
			continue
		}

		if cur.barrier != b {
			panic(wrapError(KindCrossBarrier, "deferred value belongs to a different synchronisation barrier", nil))
		}

		cur.reachable = true
		b.nodes = append(b.nodes, cur)
		stack = append(stack, cur.parents...)

		if cur.producer != nil {
			b.loop.startProducer(cur)
		}
	}
}

func (b *Barrier) enqueueSettled(d *Deferred) {
	b.loop.enqueueSettled(d)
}

// teardown cancels every reachable Deferred value that is still
// non-terminal once the root has settled, including shared nodes,
// which are exempt from cancellation everywhere else, then drains any
// resulting settlement reactions before marking the Barrier closed.
func (b *Barrier) teardown() {
	for _, d := range b.nodes {
		cancelBranch(d, true)
	}

	b.loop.drainReady()

	b.closed = true
}

func extractResult[T any](root *Deferred) (T, error) {
	var zero T

	switch root.state {
	case stateRejected, stateCancelled:
		return zero, root.err
	}

	if root.result == nil {
		return zero, nil
	}

	v, ok := root.result.(T)
	if !ok {
		return zero, newError(KindUser, fmt.Sprintf("Synchronize: root settled with %T, not %T", root.result, zero))
	}

	return v, nil
}
