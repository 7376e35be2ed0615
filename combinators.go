package deferred

import "errors"

// Then registers f to run once d fulfils, producing a new Deferred for
// whatever f returns. If f itself returns a *Deferred, the new Deferred
// follows that one's eventual outcome instead of fulfilling with the
// *Deferred value itself; this is promise absorption. If d rejects or
// is cancelled, f never runs and the new Deferred mirrors d's outcome.
func (d *Deferred) Then(f func(v any) (any, error)) *Deferred {
	child := newDeferred(d.barrier)

	d.adopt(child, func(parent *Deferred) {
		switch parent.state {
		case stateFulfilled:
			settle(parent.barrier, child, func() (any, error) { return f(parent.result) })
		case stateCancelled:
			child.settleCancelled(parent.err)
		default:
			child.settleRejected(parent.err)
		}
	})

	return child
}

// Catch registers f to run once d rejects or is cancelled with an error
// whose Kind matches one of kinds (every kind, if none are given). The
// new Deferred absorbs whatever f returns, same as Then. An outcome
// that does not match kinds passes through unchanged, uncaught.
func (d *Deferred) Catch(f func(e *Error) (any, error), kinds ...Kind) *Deferred {
	child := newDeferred(d.barrier)

	d.adopt(child, func(parent *Deferred) {
		if parent.state == stateFulfilled {
			child.settleFulfilled(parent.result)
			return
		}

		e := asDeferredError(parent.err)
		if !matchesKind(e, kinds) {
			if parent.state == stateCancelled {
				child.settleCancelled(parent.err)
			} else {
				child.settleRejected(parent.err)
			}

			return
		}

		settle(parent.barrier, child, func() (any, error) { return f(e) })
	})

	return child
}

// Finally registers f to run once d settles, regardless of outcome,
// without seeing the outcome. f does not normally change it: a nil
// return lets d's original outcome pass through unchanged. Either
// panicking or returning a non-nil Deferred replaces that outcome
// entirely instead of merging with it — the latter lets a cleanup step
// that is itself asynchronous (e.g. Delay(...).Then(...)) fail and have
// that failure win, the same way an absorbed Then/Catch result does.
func (d *Deferred) Finally(f func() *Deferred) *Deferred {
	child := newDeferred(d.barrier)

	d.adopt(child, func(parent *Deferred) {
		v, err := guardedCall(func() (any, error) { return f(), nil })
		if err != nil {
			child.settleRejected(err)
			return
		}

		if inner, _ := v.(*Deferred); inner != nil {
			absorb(parent.barrier, child, inner)
			return
		}

		switch parent.state {
		case stateFulfilled:
			child.settleFulfilled(parent.result)
		case stateCancelled:
			child.settleCancelled(parent.err)
		default:
			child.settleRejected(parent.err)
		}
	})

	return child
}

// Share turns d into a multi-consumer node: further calls to Then,
// Catch, Finally, or a join on d no longer fail with Kind: KindOwnership.
// Share returns d itself. A node already shared is unaffected by a
// second call.
func (d *Deferred) Share() *Deferred {
	d.checkBarrier()

	if d.shared {
		return d
	}

	d.shared = true

	if d.child != nil {
		d.children = append(d.children, d.child)
		d.child = nil
	}

	return d
}

// settle runs call, guarded against panics, and absorbs its result into
// child: a plain value fulfils child directly, a *Deferred makes child
// follow that Deferred's own eventual outcome instead.
func settle(b *Barrier, child *Deferred, call func() (any, error)) {
	v, err := guardedCall(call)
	if err != nil {
		child.settleRejected(err)
		return
	}

	if inner, ok := v.(*Deferred); ok {
		absorb(b, child, inner)
		return
	}

	child.settleFulfilled(v)
}

// absorb makes child follow inner's eventual outcome instead of its own.
// This is promise absorption's shared core: Then/Catch reach it through
// settle when their callback returns a *Deferred, Finally reaches it
// directly when its callback does the same.
func absorb(b *Barrier, child, inner *Deferred) {
	b.bind(inner)
	inner.react(func(p *Deferred) {
		switch p.state {
		case stateFulfilled:
			child.settleFulfilled(p.result)
		case stateCancelled:
			child.settleCancelled(p.err)
		default:
			child.settleRejected(p.err)
		}
	})
}

func asDeferredError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return wrapError(KindUser, err.Error(), err)
}

func matchesKind(e *Error, kinds []Kind) bool {
	if len(kinds) == 0 {
		return true
	}

	for _, k := range kinds {
		if k == e.Kind {
			return true
		}
	}

	return false
}

// WhenAll joins ds, fulfilling with a []any of their results in input
// order once every one of them fulfils. It rejects as soon as any one
// of them rejects or is cancelled, with that operand's own error, and
// cancels the remaining pending operands, which are no longer needed.
func WhenAll(ds ...*Deferred) *Deferred {
	if len(ds) == 0 {
		panic(newError(KindUser, "WhenAll requires at least one operand"))
	}

	child := newDeferred(ds[0].barrier)

	st := &joinAllState{
		results:   make([]any, len(ds)),
		remaining: len(ds),
		parents:   ds,
	}

	for i, p := range ds {
		i := i
		p.adopt(child, func(parent *Deferred) { st.onSettle(i, parent, child) })
	}

	return child
}

type joinAllState struct {
	results   []any
	remaining int
	decided   bool
	parents   []*Deferred
}

func (st *joinAllState) onSettle(i int, parent, child *Deferred) {
	if st.decided {
		return
	}

	if parent.state != stateFulfilled {
		st.decided = true
		cancelSiblings(st.parents, i)

		if parent.state == stateCancelled {
			child.settleCancelled(parent.err)
		} else {
			child.settleRejected(parent.err)
		}

		return
	}

	st.results[i] = parent.result
	st.remaining--

	if st.remaining == 0 {
		st.decided = true
		child.settleFulfilled(append([]any(nil), st.results...))
	}
}

// WhenAny joins ds, fulfilling with whichever one of them fulfils
// first, and cancelling the rest. It rejects only once every one of
// them has rejected or been cancelled, with a Kind: KindAllFailed error
// aggregating every operand's error in input order.
func WhenAny(ds ...*Deferred) *Deferred {
	if len(ds) == 0 {
		panic(newError(KindUser, "WhenAny requires at least one operand"))
	}

	child := newDeferred(ds[0].barrier)

	st := &joinAnyState{
		errs:      make([]error, len(ds)),
		remaining: len(ds),
		parents:   ds,
	}

	for i, p := range ds {
		i := i
		p.adopt(child, func(parent *Deferred) { st.onSettle(i, parent, child) })
	}

	return child
}

type joinAnyState struct {
	errs      []error
	remaining int
	decided   bool
	parents   []*Deferred
}

func (st *joinAnyState) onSettle(i int, parent, child *Deferred) {
	if st.decided {
		return
	}

	if parent.state == stateFulfilled {
		st.decided = true
		cancelSiblings(st.parents, i)
		child.settleFulfilled(parent.result)

		return
	}

	st.errs[i] = parent.err
	st.remaining--

	if st.remaining == 0 {
		st.decided = true
		child.settleRejected(aggregateError(KindAllFailed, "all operands failed", st.errs))
	}
}

// WhenSome joins ds, fulfilling with a []any of the first n of them to
// fulfil, in the order they settled, and cancelling whatever is still
// pending once n have succeeded. It rejects, with a Kind: KindInsufficient
// error aggregating every failure seen, as soon as fewer than n
// operands could possibly still succeed.
func WhenSome(n int, ds ...*Deferred) *Deferred {
	if n <= 0 {
		panic(newError(KindUser, "WhenSome requires n > 0"))
	}

	if n > len(ds) {
		panic(newError(KindUser, "WhenSome requires n <= len(operands)"))
	}

	child := newDeferred(ds[0].barrier)

	st := &joinSomeState{need: n, pending: len(ds), parents: ds}

	for _, p := range ds {
		p.adopt(child, func(parent *Deferred) { st.onSettle(parent, child) })
	}

	return child
}

type joinSomeState struct {
	need    int
	results []any
	errs    []error
	pending int
	decided bool
	parents []*Deferred
}

func (st *joinSomeState) onSettle(parent, child *Deferred) {
	if st.decided {
		return
	}

	st.pending--

	if parent.state == stateFulfilled {
		st.results = append(st.results, parent.result)

		if len(st.results) == st.need {
			st.decided = true
			cancelSiblings(st.parents, -1)
			child.settleFulfilled(append([]any(nil), st.results...))
		}

		return
	}

	st.errs = append(st.errs, parent.err)

	if len(st.results)+st.pending < st.need {
		st.decided = true
		cancelSiblings(st.parents, -1)
		child.settleRejected(aggregateError(KindInsufficient, "not enough operands succeeded", st.errs))
	}
}

// cancelSiblings drops interest in every one of parents except the one
// at index skip (pass -1 to cancel all of them).
func cancelSiblings(parents []*Deferred, skip int) {
	for j, sib := range parents {
		if j != skip {
			cancelBranch(sib, false)
		}
	}
}
