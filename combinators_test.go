package deferred_test

import (
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/lionel-/deferred"
)

func TestWhenAllOrdersResults(t *testing.T) {
	v, err := deferred.Synchronize[[]any](func(b *deferred.Barrier) *deferred.Deferred {
		return deferred.WhenAll(
			deferred.Delay(b, 15*time.Millisecond).Then(func(any) (any, error) { return "slow", nil }),
			deferred.Constant(b, "fast"),
		)
	})

	require.NoError(t, err)

	if diff := cmp.Diff([]any{"slow", "fast"}, v); diff != "" {
		t.Fatalf("unexpected result order (-want +got):\n%s", diff)
	}
}

func TestWhenAllCancelsSiblingsOnFailure(t *testing.T) {
	var aborted abortTracker

	_, err := deferred.Synchronize[any](func(b *deferred.Barrier) *deferred.Deferred {
		loser := deferred.NewDeferred(b, &aborted)

		return deferred.WhenAll(
			deferred.Fail(b, errFixture("fast failure")),
			loser,
		)
	})

	require.Error(t, err)
	require.True(t, aborted.called, "WhenAll did not abort the pending sibling after a failure")
}

func TestWhenAnyFulfilsWithFirstWinner(t *testing.T) {
	var aborted abortTracker

	v, err := deferred.Synchronize[string](func(b *deferred.Barrier) *deferred.Deferred {
		loser := deferred.NewDeferred(b, &aborted)

		return deferred.WhenAny(
			deferred.Constant(b, "winner"),
			loser.Then(func(any) (any, error) { return "loser", nil }),
		)
	})

	require.NoError(t, err)
	require.Equal(t, "winner", v)
	require.True(t, aborted.called, "WhenAny did not abort the losing branch")
}

func TestWhenAnyAggregatesAllFailed(t *testing.T) {
	_, err := deferred.Synchronize[any](func(b *deferred.Barrier) *deferred.Deferred {
		return deferred.WhenAny(
			deferred.Fail(b, errFixture("a")),
			deferred.Fail(b, errFixture("b")),
		)
	})

	require.Error(t, err)

	var derr *deferred.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, deferred.KindAllFailed, derr.Kind)
}

func TestWhenSomeStopsAtThreshold(t *testing.T) {
	v, err := deferred.Synchronize[[]any](func(b *deferred.Barrier) *deferred.Deferred {
		return deferred.WhenSome(2,
			deferred.Constant(b, 1),
			deferred.Constant(b, 2),
			deferred.Delay(b, 50*time.Millisecond).Then(func(any) (any, error) { return 3, nil }),
		)
	})

	require.NoError(t, err)

	got := make([]int, len(v))
	for i, x := range v {
		got[i] = x.(int)
	}

	sort.Ints(got)
	require.Equal(t, []int{1, 2}, got)
}

func TestWhenSomeReportsInsufficient(t *testing.T) {
	_, err := deferred.Synchronize[any](func(b *deferred.Barrier) *deferred.Deferred {
		return deferred.WhenSome(2,
			deferred.Constant(b, 1),
			deferred.Fail(b, errFixture("a")),
			deferred.Fail(b, errFixture("b")),
		)
	})

	require.Error(t, err)

	var derr *deferred.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, deferred.KindInsufficient, derr.Kind)
}

// abortTracker is a Producer used only to observe whether the
// cancellation engine called Abort on a branch it no longer needed. It
// never settles on its own.
type abortTracker struct {
	called bool
}

func (p *abortTracker) Start(s deferred.Settlement, reg deferred.Registrar) {}

func (p *abortTracker) Abort() { p.called = true }
