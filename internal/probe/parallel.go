package probe

import (
	"context"
	"sync"
)

// Parallel probes each target with a goroutine per target, at most
// concurrency at a time. results[i] belongs to targets[i].
func Parallel(ctx context.Context, p Prober, targets []Target, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]Result, len(targets))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, t := range targets {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			results[i] = p.Probe(ctx, t)
		}()
	}

	wg.Wait()
	return results
}
