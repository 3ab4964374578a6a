// Package workpool runs batch work over a bounded set of workers.
//
// Batch operations in the linking engine (processing unlinked messages,
// backfilling shipments) submit independent items; workers share nothing but
// the persistence layer. Cancellation stops scheduling new items while
// letting in-flight items complete, so partial counts are always returned.
package workpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Stats summarizes a pool run.
type Stats struct {
	Submitted int
	Completed int
	Failed    int
	Skipped   int // items never scheduled because the context was cancelled
}

// Pool executes items with a fixed number of workers.
type Pool struct {
	workers int
	logger  *zap.Logger
}

// New creates a pool with the given worker count. Counts below one are
// raised to one.
func New(workers int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, logger: logger.Named("workpool")}
}

// Run processes every item with fn, at most p.workers at a time. An item's
// error is counted and logged, never fatal to the run. When ctx is cancelled
// no further items are scheduled; items already handed to a worker run to
// completion with a background-derived context so they are not torn down
// mid-write.
func Run[T any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) error) Stats {
	stats := Stats{Submitted: len(items)}
	if len(items) == 0 {
		return stats
	}

	jobs := make(chan T)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				// In-flight items finish even after cancellation; fn decides
				// how to honor deadlines for its own I/O.
				err := fn(context.WithoutCancel(ctx), item)

				mu.Lock()
				if err != nil {
					stats.Failed++
				} else {
					stats.Completed++
				}
				mu.Unlock()

				if err != nil {
					p.logger.Warn("work item failed", zap.Error(err))
				}
			}
		}()
	}

scheduling:
	for _, item := range items {
		select {
		case jobs <- item:
		case <-ctx.Done():
			break scheduling
		}
	}
	close(jobs)
	wg.Wait()

	stats.Skipped = stats.Submitted - stats.Completed - stats.Failed
	return stats
}
