package deferred

// cancelBranch drops interest in d. It marks d cancelled, best-effort
// aborts its producer if one is in flight, and then walks up through d's
// exclusive (non-shared) parents, cancelling each ancestor that has no
// other reason to keep running.
//
// Shared deferred values are exempt from this walk unless teardown is
// true: a shared node stays alive for its other consumers until its
// barrier tears down, at which point every non-terminal reachable node
// is swept regardless of sharing.
func cancelBranch(d *Deferred, teardown bool) {
	if d == nil || d.isTerminal() {
		return
	}

	if d.shared && !teardown {
		return
	}

	d.cancelRequested = true

	if d.producer != nil && d.barrier != nil {
		d.barrier.loop.abortProducer(d)
	}

	d.settleCancelled(newError(KindCancelled, "deferred value no longer needed"))

	for _, p := range d.exclusiveParents() {
		cancelBranch(p, teardown)
	}
}

// interruptRoot cancels root the way an external interrupt (SIGINT,
// SIGTERM) does: root itself settles with Kind [KindInterrupted] rather
// than the generic [KindCancelled] reason cancelBranch uses, since root
// is the direct target of the interrupt rather than incidental cleanup.
// Its exclusive parents are swept the ordinary way.
func interruptRoot(root *Deferred) {
	if root.isTerminal() {
		return
	}

	root.cancelRequested = true

	if root.producer != nil && root.barrier != nil {
		root.barrier.loop.abortProducer(root)
	}

	root.settleCancelled(newError(KindInterrupted, "interrupted by external signal"))

	for _, p := range root.exclusiveParents() {
		cancelBranch(p, false)
	}
}
