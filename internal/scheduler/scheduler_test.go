package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunBoundsConcurrency(t *testing.T) {
	const n = 10
	const concurrency = 3
	var current, max int64

	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		tasks[i] = Task{
			Name: "task",
			Fn: func(ctx context.Context) error {
				c := atomic.AddInt64(&current, 1)
				for {
					m := atomic.LoadInt64(&max)
					if c <= m || atomic.CompareAndSwapInt64(&max, m, c) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return nil
			},
		}
	}

	results, err := Run(context.Background(), concurrency, tasks)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != n {
		t.Fatalf("expected %d results, got %d", n, len(results))
	}
	if max > concurrency {
		t.Fatalf("observed concurrency %d exceeds cap %d", max, concurrency)
	}
}

func TestRunCollectsEveryResultDespiteFailures(t *testing.T) {
	errBoom := errors.New("boom")
	tasks := []Task{
		{Name: "a", Fn: func(ctx context.Context) error { return nil }},
		{Name: "b", Fn: func(ctx context.Context) error { return errBoom }},
		{Name: "c", Fn: func(ctx context.Context) error { return nil }},
	}
	results, err := Run(context.Background(), 2, tasks)
	if err == nil {
		t.Fatal("expected the first task error to be returned")
	}
	if len(results) != 3 {
		t.Fatalf("expected all 3 results even though task b failed, got %d", len(results))
	}
	var sawB bool
	for _, r := range results {
		if r.Name == "b" {
			sawB = true
			if r.Err != errBoom {
				t.Fatalf("expected task b's own error, got %v", r.Err)
			}
		}
		if r.Name == "a" || r.Name == "c" {
			if r.Err != nil {
				t.Fatalf("task %s should not have failed: %v", r.Name, r.Err)
			}
		}
	}
	if !sawB {
		t.Fatal("expected to find task b's result")
	}
}

func TestRunZeroConcurrencyDefaultsToOne(t *testing.T) {
	tasks := []Task{
		{Name: "a", Fn: func(ctx context.Context) error { return nil }},
	}
	results, err := Run(context.Background(), 0, tasks)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}
