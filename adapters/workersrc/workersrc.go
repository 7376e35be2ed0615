// Package workersrc is a reference Source Adapter Contract
// implementation backing a deferred value with a call run on a bounded
// pool of goroutines, built on this module's own Semaphore.
package workersrc

import (
	"context"

	"github.com/lionel-/deferred"
)

// Pool bounds how many workersrc calls run concurrently.
type Pool struct {
	sema *deferred.Semaphore
}

// NewPool creates a Pool that allows at most n concurrent calls.
func NewPool(n int64) *Pool {
	return &Pool{sema: deferred.NewSemaphore(n)}
}

// Call hands f to pool once a worker slot is free, and settles with
// whatever f returns. Abort does not interrupt f once it has started
// (Go has no safe way to preempt a running goroutine); it only skips
// starting f if the Deferred is cancelled while still queued.
func Call(b *deferred.Barrier, pool *Pool, f func() (any, error)) *deferred.Deferred {
	return deferred.NewDeferred(b, &producer{pool: pool, f: f})
}

type producer struct {
	pool   *Pool
	f      func() (any, error)
	cancel context.CancelFunc
}

func (p *producer) Start(s deferred.Settlement, reg deferred.Registrar) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		if err := p.pool.sema.Acquire(ctx, 1); err != nil {
			s.Reject(deferred.WrapError(deferred.KindCancelled, "worker call aborted before it started", err))
			return
		}
		defer p.pool.sema.Release(1)

		v, err := p.f()
		if err != nil {
			s.Reject(deferred.WrapError(deferred.KindUser, "worker call failed", err))
			return
		}

		s.Fulfil(v)
	}()
}

func (p *producer) Abort() {
	if p.cancel != nil {
		p.cancel()
	}
}
