package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRun_ProcessesAllItems(t *testing.T) {
	p := New(3, zap.NewNop())

	var mu sync.Mutex
	seen := make(map[int]bool)

	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	stats := Run(context.Background(), p, items, func(_ context.Context, n int) error {
		mu.Lock()
		seen[n] = true
		mu.Unlock()
		return nil
	})

	if stats.Completed != len(items) || stats.Failed != 0 || stats.Skipped != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(seen) != len(items) {
		t.Errorf("processed %d distinct items, want %d", len(seen), len(items))
	}
}

func TestRun_CountsFailuresWithoutAborting(t *testing.T) {
	p := New(2, zap.NewNop())

	stats := Run(context.Background(), p, []int{1, 2, 3, 4, 5}, func(_ context.Context, n int) error {
		if n%2 == 0 {
			return errors.New("boom")
		}
		return nil
	})

	if stats.Completed != 3 || stats.Failed != 2 {
		t.Errorf("stats = %+v, want 3 completed / 2 failed", stats)
	}
}

func TestRun_CancellationStopsScheduling(t *testing.T) {
	p := New(1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	var processed atomic.Int32

	items := make([]int, 100)
	stats := Run(ctx, p, items, func(_ context.Context, _ int) error {
		if processed.Add(1) == 3 {
			cancel()
		}
		time.Sleep(time.Millisecond)
		return nil
	})

	if stats.Skipped == 0 {
		t.Errorf("expected skipped items after cancellation, stats = %+v", stats)
	}
	if stats.Completed+stats.Failed+stats.Skipped != stats.Submitted {
		t.Errorf("counts do not add up: %+v", stats)
	}
}

func TestRun_InFlightItemsComplete(t *testing.T) {
	p := New(1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before scheduling starts

	stats := Run(ctx, p, []int{1, 2, 3}, func(itemCtx context.Context, _ int) error {
		// An item handed to a worker must run with a live context.
		if err := itemCtx.Err(); err != nil {
			t.Errorf("item context cancelled: %v", err)
		}
		return nil
	})

	if stats.Completed+stats.Failed+stats.Skipped != stats.Submitted {
		t.Errorf("counts do not add up: %+v", stats)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	p := New(4, zap.NewNop())
	stats := Run(context.Background(), p, nil, func(_ context.Context, _ int) error { return nil })
	if stats.Submitted != 0 || stats.Completed != 0 {
		t.Errorf("stats = %+v", stats)
	}
}
