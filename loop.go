package deferred

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
)

// readyQueue is a strict FIFO, amortized-allocation queue of Deferred
// values whose onSettle reaction is due to run. Unlike priorityqueue,
// ordering here is pure arrival order: the Loop never reorders ready
// work within a single tick.
type readyQueue struct {
	buf  []*Deferred
	head int
}

func (q *readyQueue) push(d *Deferred) {
	q.buf = append(q.buf, d)
}

func (q *readyQueue) pop() *Deferred {
	d := q.buf[q.head]
	q.buf[q.head] = nil
	q.head++

	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
	}

	return d
}

func (q *readyQueue) empty() bool {
	return q.head == len(q.buf)
}

// timerEntry is one pending Registrar.AfterFunc wait, ordered by
// deadline with FIFO tie-breaking for entries sharing a deadline.
type timerEntry struct {
	deadline  time.Time
	seq       int64
	f         func()
	cancelled bool
}

func (e *timerEntry) less(other *timerEntry) bool {
	if !e.deadline.Equal(other.deadline) {
		return e.deadline.Before(other.deadline)
	}

	return e.seq < other.seq
}

// Loop is the single-threaded event loop that drives one Barrier's
// Deferred graph to completion. A Loop is created and owned by exactly
// one Barrier; nested barriers get their own Loop, driven to completion
// synchronously within whichever tick of the outer Loop is running the
// callback that opened them.
//
// Settlements arrive from arbitrary goroutines (an adapter's own
// goroutine, a fired timer) over a mutex-guarded slice plus a
// single-slot wakeup channel.
type Loop struct {
	logger hclog.Logger

	mu     sync.Mutex
	extern []func()
	wake   chan struct{}

	ready  readyQueue
	timers priorityqueue[*timerEntry]

	timerSeq    int64
	outstanding int
}

func newLoop(logger hclog.Logger) *Loop {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// deliver queues f to run on the Loop's own goroutine and wakes the
// Loop if it is blocked waiting for work. Safe to call from any
// goroutine, including the Loop's own.
func (l *Loop) deliver(f func()) {
	l.mu.Lock()
	l.extern = append(l.extern, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) drainExternal() {
	l.mu.Lock()
	fns := l.extern
	l.extern = nil
	l.mu.Unlock()

	for _, f := range fns {
		f()
	}
}

// enqueueSettled is called exactly once per Deferred, when it reaches a
// terminal state, by Deferred.fireSettle.
func (l *Loop) enqueueSettled(d *Deferred) {
	if d.producer != nil && d.started {
		l.outstanding--
	}

	l.ready.push(d)
}

// startProducer calls p.Start for d, tracking it as outstanding work so
// the Loop knows not to give up on an empty ready queue while it is
// still in flight.
func (l *Loop) startProducer(d *Deferred) {
	if d.started || d.isTerminal() {
		return
	}

	d.started = true
	d.state = stateRunning
	l.outstanding++

	l.logger.Trace("starting producer", "deferred", d.id)

	d.producer.Start(settlement{d: d, l: l}, registrar{l: l})
}

// abortProducer requests cancellation of an in-flight producer. A no-op
// for Deferred values that never started or already settled.
func (l *Loop) abortProducer(d *Deferred) {
	if d.producer == nil || !d.started || d.isTerminal() {
		return
	}

	l.logger.Trace("aborting producer", "deferred", d.id)

	d.producer.Abort()
}

// run drains ready work, external settlements, and timers until root
// reaches a terminal state or the Loop determines nothing more will
// ever happen. A SIGINT/SIGTERM delivered while run is blocked cancels
// root (and, transitively, whatever only exists to feed it) and settles
// it with Kind [KindInterrupted] instead of letting the process die
// mid-operation.
func (l *Loop) run(root *Deferred) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for !root.isTerminal() {
		l.drainExternal()

		if !l.ready.empty() {
			d := l.ready.pop()
			l.logger.Debug("settling", "deferred", d.id, "state", d.state.String())
			d.runOnSettle()

			continue
		}

		if l.outstanding == 0 && l.timers.Empty() {
			select {
			case <-sigCh:
				l.interrupt(root)
				continue
			default:
			}

			l.logger.Warn("loop idle with unreachable work outstanding", "deferred", root.id)
			return
		}

		l.waitForWork(sigCh, root)
	}
}

func (l *Loop) interrupt(root *Deferred) {
	l.logger.Warn("interrupted, cancelling root", "deferred", root.id)
	interruptRoot(root)
}

// drainReady runs every reaction currently queued, without blocking for
// external work. Used by Barrier.teardown, once the root has already
// settled and nothing further will legitimately become ready other than
// the cancellation sweep's own settlements.
func (l *Loop) drainReady() {
	for {
		l.drainExternal()

		if l.ready.empty() {
			return
		}

		d := l.ready.pop()
		d.runOnSettle()
	}
}

func (l *Loop) waitForWork(sigCh <-chan os.Signal, root *Deferred) {
	if l.timers.Empty() {
		select {
		case <-l.wake:
		case <-sigCh:
			l.interrupt(root)
		}

		return
	}

	d := time.Until(l.timers.Peek().deadline)
	if d <= 0 {
		l.fireExpiredTimers()
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-l.wake:
	case <-sigCh:
		l.interrupt(root)
	case <-timer.C:
		l.fireExpiredTimers()
	}
}

func (l *Loop) fireExpiredTimers() {
	now := time.Now()

	for !l.timers.Empty() && !l.timers.Peek().deadline.After(now) {
		e := l.timers.Pop()
		if !e.cancelled {
			e.f()
		}
	}
}

type registrar struct{ l *Loop }

func (r registrar) AfterFunc(d time.Duration, f func()) (cancel func()) {
	r.l.timerSeq++

	e := &timerEntry{deadline: time.Now().Add(d), seq: r.l.timerSeq, f: f}
	r.l.timers.Push(e)

	return func() { e.cancelled = true }
}
