// Package workerpool provides a fixed-size pool of goroutines that run
// submitted jobs. Pools are explicit values: each pipeline owns its own and
// shuts it down with Close.
package workerpool

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// Pool runs jobs on a fixed number of goroutines.
type Pool struct {
	jobs chan func()
	size int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts a pool with size workers. Sizes below one are raised to one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{jobs: make(chan func()), size: size}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Submit hands fn to an idle worker, blocking until one accepts it or ctx is
// done.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go submits each of n indexed jobs and waits for all accepted jobs to
// finish. It stops submitting when ctx is done and returns the context error.
func (p *Pool) Go(ctx context.Context, n int, fn func(int)) error {
	var wg sync.WaitGroup
	var submitErr error
	for i := 0; i < n; i++ {
		idx := i
		wg.Add(1)
		if err := p.Submit(ctx, func() {
			defer wg.Done()
			fn(idx)
		}); err != nil {
			wg.Done()
			submitErr = err
			break
		}
	}
	wg.Wait()
	return submitErr
}

// Close stops accepting jobs and waits for running jobs to return. It is safe
// to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
