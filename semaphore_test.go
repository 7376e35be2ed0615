package deferred_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lionel-/deferred"
)

func TestSemaphore(t *testing.T) {
	t.Run("AcquireRelease", func(t *testing.T) {
		sema := deferred.NewSemaphore(1)

		ctx := context.Background()
		if err := sema.Acquire(ctx, 1); err != nil {
			t.Fatalf("Acquire: %v", err)
		}

		if sema.TryAcquire(1) {
			t.Fatal("TryAcquire succeeded while the only unit was held.")
		}

		sema.Release(1)

		if !sema.TryAcquire(1) {
			t.Fatal("TryAcquire did not succeed after Release.")
		}
	})

	t.Run("BlocksUntilReleased", func(t *testing.T) {
		sema := deferred.NewSemaphore(1)

		ctx := context.Background()
		if err := sema.Acquire(ctx, 1); err != nil {
			t.Fatalf("Acquire: %v", err)
		}

		var wg sync.WaitGroup

		acquired := make(chan struct{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sema.Acquire(ctx, 1); err != nil {
				t.Errorf("Acquire: %v", err)
			}
			close(acquired)
		}()

		select {
		case <-acquired:
			t.Fatal("second Acquire returned before Release.")
		case <-time.After(20 * time.Millisecond):
		}

		sema.Release(1)

		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("second Acquire never returned after Release.")
		}

		wg.Wait()
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		sema := deferred.NewSemaphore(1)

		ctx := context.Background()
		if err := sema.Acquire(ctx, 1); err != nil {
			t.Fatalf("Acquire: %v", err)
		}

		cctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := sema.Acquire(cctx, 1); err == nil {
			t.Fatal("Acquire did not report an error for a canceled context.")
		}

		sema.Release(1)

		if !sema.TryAcquire(1) {
			t.Fatal("weight leaked into the canceled waiter.")
		}
	})
}
