package meshtools

import (
	"runtime"
	"sync"
)

// maxWorkers caps the goroutines used for one pass over a large mesh.
const maxWorkers = 4

// forRegions calls fn over contiguous ranges covering [0, n). Ranges run
// concurrently once n reaches threshold; fn must only write to its own
// range.
func forRegions(n, threshold int, fn func(start, end int)) {
	workers := 1
	if n >= threshold {
		workers = min(runtime.NumCPU(), maxWorkers)
	}
	if workers <= 1 {
		fn(0, n)
		return
	}

	perWorker := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * perWorker
		if start >= n {
			break
		}
		end := min(start+perWorker, n)

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
