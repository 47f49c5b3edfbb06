package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherResultsInInputOrder(t *testing.T) {
	d := &Dispatcher{Workers: 4}
	var mu sync.Mutex
	got := map[int]bool{}
	errs := d.Run(context.Background(), 20, func(_ context.Context, i int) error {
		mu.Lock()
		got[i] = true
		mu.Unlock()
		if i%3 == 0 {
			return fmt.Errorf("item %d", i)
		}
		return nil
	})
	if len(errs) != 20 {
		t.Fatalf("expected 20 error slots, got %d", len(errs))
	}
	for i, err := range errs {
		if i%3 == 0 && err == nil {
			t.Errorf("item %d: expected error", i)
		}
		if i%3 != 0 && err != nil {
			t.Errorf("item %d: unexpected error %v", i, err)
		}
	}
	if len(got) != 20 {
		t.Errorf("expected all 20 items to run, got %d", len(got))
	}
}

func TestDispatcherZeroItems(t *testing.T) {
	d := &Dispatcher{Workers: 2}
	errs := d.Run(context.Background(), 0, func(_ context.Context, _ int) error {
		t.Fatal("task should not run")
		return nil
	})
	if len(errs) != 0 {
		t.Fatalf("expected no error slots, got %d", len(errs))
	}
}

func TestDispatcherSpacesDispatches(t *testing.T) {
	d := &Dispatcher{Workers: 2, Interval: 20 * time.Millisecond}
	start := time.Now()
	errs := d.Run(context.Background(), 4, func(_ context.Context, _ int) error { return nil })
	for _, err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Three gaps between four dispatches.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("expected at least 60ms of pacing, got %v", elapsed)
	}
}

func TestDispatcherCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{Workers: 1, Interval: 10 * time.Millisecond}
	var ran atomic.Int32
	errs := d.Run(ctx, 50, func(_ context.Context, i int) error {
		if i == 0 {
			cancel()
		}
		ran.Add(1)
		return nil
	})
	var cancelled int
	for _, err := range errs {
		if errors.Is(err, context.Canceled) {
			cancelled++
		}
	}
	if cancelled == 0 {
		t.Error("expected unfed items to report context.Canceled")
	}
	if int(ran.Load())+cancelled != 50 {
		t.Errorf("ran %d + cancelled %d != 50", ran.Load(), cancelled)
	}
}
