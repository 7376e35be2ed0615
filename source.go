package deferred

import "time"

// Settlement is how a [Producer] reports the outcome of the deferred
// value it was started for. Exactly one of Fulfil or Reject must be
// called, exactly once. Both are safe to call from any goroutine: the
// Loop marshals the call back onto its own goroutine before touching
// the Deferred's state.
type Settlement interface {
	Fulfil(v any)
	Reject(err error)
}

// Producer is the abstraction a source adapter implements to plug a
// concrete asynchronous operation (a timer, an HTTP round trip, a
// subprocess, a worker-pool call) into the engine without the engine
// knowing anything about sockets, processes, or goroutine pools.
type Producer interface {
	// Start begins the operation. The Loop calls it at most once, from
	// its own goroutine, when the Deferred it backs becomes reachable.
	// Start must not block; it arranges for s.Fulfil or s.Reject to be
	// called exactly once, from any goroutine, once the operation
	// settles.
	Start(s Settlement, reg Registrar)

	// Abort requests best-effort cancellation of the operation started
	// by Start. The Loop calls it when the Deferred is dropped by the
	// cancellation engine before settling. Abort must not block, and
	// must tolerate being called after the operation has already
	// settled (a no-op in that case).
	Abort()
}

// Registrar lets a Producer borrow the Loop's own timer wheel for a
// plain "wake me after d" wait instead of spinning up a dedicated
// goroutine and time.Timer of its own.
type Registrar interface {
	// AfterFunc arranges for f to run, on the Loop's goroutine, no
	// earlier than d has elapsed. The returned cancel function stops
	// the wait if it has not yet fired; calling it after f has already
	// run is a no-op.
	AfterFunc(d time.Duration, f func()) (cancel func())
}

type settlement struct {
	d *Deferred
	l *Loop
}

func (s settlement) Fulfil(v any) {
	s.l.deliver(func() { s.d.settleFulfilled(v) })
}

func (s settlement) Reject(err error) {
	s.l.deliver(func() { s.d.settleRejected(err) })
}

// source wraps a Deferred whose value comes from a Producer rather than
// from a combinator. It is the leaf constructor every adapter (and
// Constant/Delay below) builds on.
func source(b *Barrier, p Producer) *Deferred {
	d := newDeferred(b)
	d.producer = p

	return d
}

// NewDeferred builds a leaf Deferred value backed by p, bound to b. It
// is the constructor the adapters subpackages (and any other source
// adapter outside this module) use to plug a concrete Producer into the
// engine; Constant, Fail, and Delay are all thin wrappers around it.
func NewDeferred(b *Barrier, p Producer) *Deferred {
	return source(b, p)
}

// Constant returns a Deferred already scheduled to fulfil with v on the
// next Loop tick. Useful for seeding combinators with a known value
// without standing up a real Producer.
func Constant(b *Barrier, v any) *Deferred {
	return source(b, constantProducer{v: v})
}

// Fail returns a Deferred already scheduled to reject with err on the
// next Loop tick.
func Fail(b *Barrier, err error) *Deferred {
	return source(b, failProducer{err: err})
}

type constantProducer struct{ v any }

func (p constantProducer) Start(s Settlement, reg Registrar) { s.Fulfil(p.v) }
func (p constantProducer) Abort()                            {}

type failProducer struct{ err error }

func (p failProducer) Start(s Settlement, reg Registrar) { s.Reject(p.err) }
func (p failProducer) Abort()                             {}

// Delay returns a Deferred that fulfils with nil after d has elapsed.
// Aborting it before it fires cancels the underlying timer.
func Delay(b *Barrier, d time.Duration) *Deferred {
	return source(b, &delayProducer{d: d})
}

type delayProducer struct {
	d      time.Duration
	cancel func()
}

func (p *delayProducer) Start(s Settlement, reg Registrar) {
	p.cancel = reg.AfterFunc(p.d, func() { s.Fulfil(nil) })
}

func (p *delayProducer) Abort() {
	if p.cancel != nil {
		p.cancel()
	}
}
