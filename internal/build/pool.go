package build

import (
	"context"
	"runtime"
	"sync"
)

// runUnits feeds units to a fixed pool of workers. When ctx is canceled
// workers stop picking up new units; units already in flight run to
// completion so no half-written outputs are left behind.
func runUnits(ctx context.Context, workers int, units []Unit, fn func(Unit)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(units) {
		workers = len(units)
	}
	if workers == 0 {
		return
	}

	queue := make(chan Unit)
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for unit := range queue {
				fn(unit)
			}
		}()
	}

feed:
	for _, unit := range units {
		select {
		case <-ctx.Done():
			break feed
		case queue <- unit:
		}
	}
	close(queue)
	wg.Wait()
}
