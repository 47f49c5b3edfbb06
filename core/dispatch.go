package core

import (
	"context"
	"sync"
	"time"
)

// Dispatcher runs per-item calls against a rate-limited external
// service. It bounds concurrency to Workers and keeps a minimum
// Interval between dispatches regardless of queue length, replacing
// the fixed-sleep-per-call loop. Results come back in input order: the
// caller indexes by item, not by completion time.
type Dispatcher struct {
	Workers  int
	Interval time.Duration
}

// Run invokes task for indices 0..n-1 and returns one error slot per
// index. A nil slot means the item succeeded. Run stops feeding new
// items when ctx is cancelled; unfed items report ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}
	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	feed := make(chan int)
	go func() {
		defer close(feed)
		for i := 0; i < n; i++ {
			if i > 0 && d.Interval > 0 {
				select {
				case <-time.After(d.Interval):
				case <-ctx.Done():
				}
			}
			select {
			case feed <- i:
			case <-ctx.Done():
				for j := i; j < n; j++ {
					errs[j] = ctx.Err()
				}
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range feed {
				errs[i] = task(ctx, i)
			}
		}()
	}
	wg.Wait()
	return errs
}
