package workersrc_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lionel-/deferred"
	"github.com/lionel-/deferred/adapters/workersrc"
)

func TestCallBoundsConcurrency(t *testing.T) {
	pool := workersrc.NewPool(2)

	var inFlight, maxInFlight int64

	work := func() (any, error) {
		n := atomic.AddInt64(&inFlight, 1)
		defer atomic.AddInt64(&inFlight, -1)

		for {
			old := atomic.LoadInt64(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt64(&maxInFlight, old, n) {
				break
			}
		}

		return n, nil
	}

	v, err := deferred.Synchronize[[]any](func(b *deferred.Barrier) *deferred.Deferred {
		calls := make([]*deferred.Deferred, 5)
		for i := range calls {
			calls[i] = workersrc.Call(b, pool, work)
		}

		return deferred.WhenAll(calls...)
	})

	require.NoError(t, err)
	require.Len(t, v, 5)
	require.LessOrEqual(t, maxInFlight, int64(2))
}
