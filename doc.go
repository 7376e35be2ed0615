// Package deferred is a single-threaded, cooperative runtime for
// asynchronous computation built around deferred values, placeholders
// for results that will be produced later by timers, I/O, subprocesses,
// or background workers.
//
// A deferred value starts pending. A [Producer] eventually settles it,
// fulfilled with a result or rejected with an error. Deferred values are
// combined with [Deferred.Then], [Deferred.Catch], [Deferred.Finally],
// [WhenAll], [WhenAny], [WhenSome] and [Deferred.Share] into a DAG rooted
// at whichever deferred value the caller cares about.
//
// # Synchronisation Barriers
//
// Nothing runs until [Synchronize] is called. Synchronize takes a
// function that constructs a DAG and returns its root, binds every
// deferred reachable from that root to a fresh [Barrier], and drives a
// single-threaded [Loop] until the root settles. The result (or error) of
// the root is then returned to the caller.
//
//	v, err := Synchronize[int](func(b *Barrier) *Deferred {
//		return Delay(b, 50*time.Millisecond).Then(func(any) (any, error) {
//			return 42, nil
//		})
//	})
//
// Synchronize calls nest: a callback running inside one barrier's loop
// may call Synchronize again to open an inner barrier. The outer loop is
// simply suspended, on the same goroutine, for as long as the inner one
// runs; it is just an ordinary nested Go call, no special scheduling
// is required. What nesting does not allow is reaching across barriers:
// a deferred value bound to one barrier must never be touched by code
// running in another, because passing deferred values across
// synchronisation barriers is explicitly unsupported. A combinator call
// on a value whose barrier has already returned from Synchronize panics
// at once with kind [KindCrossBarrier]. A value of a barrier that is
// still running (an outer one) is caught with the same kind only when
// another barrier binds it, as its root or as an absorbed callback
// result; a combinator call on such a value that is never bound there
// is not detected.
//
// # Structured Auto-Cancellation
//
// When a barrier's root settles while other reachable deferred values
// are still pending, those values (and, transitively, any of their
// parents that exist only to feed them) are canceled: their [Producer]
// is asked to abort, best-effort, and the deferred value is marked
// canceled immediately rather than waiting for the abort to actually
// complete. The same walk runs whenever a join
// combinator ([WhenAny], the over-threshold branches of [WhenSome])
// decides a branch's result is no longer wanted. A [Deferred.Share]d
// value is the one exception: it survives until its owning barrier tears
// down, however many of its children come and go in the meantime.
//
// # Source Adapters
//
// Concrete sources (timers via [Delay], HTTP requests, subprocesses,
// worker calls) are not special-cased by the core. Each is a [Producer]:
// a pair of callbacks, Start and Abort, that the [Loop] invokes, and that
// must invoke exactly one of a [Settlement]'s Fulfil/Reject methods in
// return. Reference adapters for HTTP, subprocesses and a worker pool
// live in the adapters subpackages; none of their domain logic is known
// to the core engine.
package deferred
