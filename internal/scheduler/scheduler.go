// Package scheduler is the bounded-concurrency task engine behind bulk
// operations ("sync everything", "discover missing metadata"): one task
// per repo, gated by a semaphore whose capacity is
// config.MaxConcurrentRcloneOps. Every task's error is collected rather
// than aborting its siblings; the first error is surfaced only after
// every task has settled.
package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is one unit of bounded-concurrency work.
type Task struct {
	// Name identifies the task for Result reporting (typically a repo
	// index name).
	Name string
	Fn   func(ctx context.Context) error
}

// Result carries one task's outcome, keyed by Task.Name, in submission
// order.
type Result struct {
	Name string
	Err  error
}

// Run executes tasks with at most `concurrency` running at once. Every
// task runs to completion regardless of its siblings' outcomes; Run
// returns every result in submission order, plus the first error
// encountered (if any) so callers that just want pass/fail can check it
// directly.
func Run(ctx context.Context, concurrency int, tasks []Task) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]Result, len(tasks))
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	for i, t := range tasks {
		i, t := i, t
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled before this task could start: record it and
			// go on to the next task, which tries for a slot in turn;
			// already-running tasks finish (they hold their own slot).
			results[i] = Result{Name: t.Name, Err: err}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = Result{Name: t.Name, Err: t.Fn(ctx)}
		}()
	}
	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			return results, r.Err
		}
	}
	return results, nil
}
