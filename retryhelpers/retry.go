// Package retryhelpers is built purely out of the exported combinators
// (Then, Catch, Delay); it never touches engine internals. The backoff
// schedule itself comes from github.com/cenkalti/backoff/v5 so the delay
// between attempts grows the same way it would in any other Go service
// using that library, rather than reinventing exponential backoff here.
package retryhelpers

import (
	"github.com/cenkalti/backoff/v5"

	"github.com/lionel-/deferred"
)

// Retry calls attempt up to maxAttempts times, waiting between failed
// attempts according to an exponential backoff schedule, stopping as
// soon as one attempt fulfils. If every attempt fails, the returned
// Deferred rejects with the last attempt's error.
func Retry(b *deferred.Barrier, attempt func(b *deferred.Barrier) *deferred.Deferred, maxAttempts int) *deferred.Deferred {
	return retryStep(b, attempt, backoff.NewExponentialBackOff(), 1, maxAttempts)
}

func retryStep(
	b *deferred.Barrier,
	attempt func(*deferred.Barrier) *deferred.Deferred,
	bo backoff.BackOff,
	n, max int,
) *deferred.Deferred {
	return attempt(b).Catch(func(e *deferred.Error) (any, error) {
		if n >= max {
			return nil, e
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil, e
		}

		return deferred.Delay(b, wait).Then(func(any) (any, error) {
			return retryStep(b, attempt, bo, n+1, max), nil
		}), nil
	})
}
