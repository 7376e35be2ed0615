package deferred_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lionel-/deferred"
)

// ExampleSemaphore demonstrates the building block adapters/workersrc
// uses to bound how many worker goroutines run at once: callers race to
// Acquire, do their work, then Release so the next waiter can proceed.
func ExampleSemaphore() {
	sema := deferred.NewSemaphore(2)

	var (
		mu      sync.Mutex
		results []int
		wg      sync.WaitGroup
	)

	for n := 1; n <= 4; n++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			if err := sema.Acquire(context.Background(), 1); err != nil {
				return
			}
			defer sema.Release(1)

			mu.Lock()
			results = append(results, n)
			mu.Unlock()
		}(n)
	}

	wg.Wait()

	sort.Ints(results)
	fmt.Println(results)

	// Output:
	// [1 2 3 4]
}
