package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"strata/internal/workerpool"
)

func TestGoRunsEveryJob(t *testing.T) {
	pool := workerpool.New(3)
	defer pool.Close()

	var count atomic.Int32
	seen := make([]bool, 10)
	if err := pool.Go(context.Background(), len(seen), func(i int) {
		seen[i] = true
		count.Add(1)
	}); err != nil {
		t.Fatalf("Go: %v", err)
	}
	if count.Load() != 10 {
		t.Fatalf("expected 10 jobs, ran %d", count.Load())
	}
	for i, ok := range seen {
		if !ok {
			t.Fatalf("job %d did not run", i)
		}
	}
}

func TestConcurrencyBoundedBySize(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.Close()

	var running, peak atomic.Int32
	_ = pool.Go(context.Background(), 8, func(int) {
		now := running.Add(1)
		for {
			prev := peak.Load()
			if now <= prev || peak.CompareAndSwap(prev, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
	})
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent jobs, saw %d", peak.Load())
	}
	if pool.Size() != 2 {
		t.Fatalf("unexpected size %d", pool.Size())
	}
}

func TestSubmitAfterClose(t *testing.T) {
	pool := workerpool.New(1)
	pool.Close()
	pool.Close()
	if err := pool.Submit(context.Background(), func() {}); !errors.Is(err, workerpool.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSubmitHonoursContext(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Close()

	release := make(chan struct{})
	if err := pool.Submit(context.Background(), func() { <-release }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Submit(ctx, func() {})
	close(release)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestNewRaisesSize(t *testing.T) {
	pool := workerpool.New(0)
	defer pool.Close()
	if pool.Size() != 1 {
		t.Fatalf("expected size 1, got %d", pool.Size())
	}
}
