package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/bindery/internal/correct"
	"github.com/jackzampolin/bindery/internal/pagesource"
)

// scheduler fans pages out to a bounded pool of correction workers and
// fans the results back into page order. Each result slot has exactly one
// writer (the worker holding that page), so no locking is needed beyond
// the slot write itself. The progress callback fires in completion order;
// the returned slice is always in page order.
type scheduler struct {
	stage   *correct.Stage
	workers int
	grace   time.Duration
	logger  *slog.Logger

	// onDone fires after each page completes, in completion order, under
	// an internal lock so counts are monotonic.
	onDone func(completed int, res correct.Result)
}

func newScheduler(stage *correct.Stage, workers int, grace time.Duration, logger *slog.Logger, onDone func(int, correct.Result)) *scheduler {
	if workers < 1 {
		workers = 1
	}
	if grace <= 0 {
		grace = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &scheduler{
		stage:   stage,
		workers: workers,
		grace:   grace,
		logger:  logger.With("component", "scheduler"),
		onDone:  onDone,
	}
}

// run processes all pages and returns results indexed by page order. On
// cancellation no new pages are dispatched; in-flight calls get a bounded
// grace period to finish so API responses aren't truncated, and whatever
// completed is returned (still in page order) with ErrCancelled.
func (s *scheduler) run(ctx context.Context, pages []pagesource.Page) ([]correct.Result, error) {
	results := make([]correct.Result, len(pages))
	done := make([]bool, len(pages))

	// Tasks keep running on taskCtx after ctx is cancelled, for up to the
	// grace period.
	taskCtx, taskCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer taskCancel()

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-finished:
		case <-ctx.Done():
			select {
			case <-finished:
			case <-time.After(s.grace):
				s.logger.Warn("grace period expired, aborting in-flight corrections")
				taskCancel()
			}
		}
	}()

	jobs := make(chan int)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)

	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				pages[idx].Status = pagesource.StatusInFlight
				res := s.stage.Correct(taskCtx, pages[idx])

				// Sole writer for this index.
				results[idx] = res
				done[idx] = true
				if res.Err != nil {
					pages[idx].Status = pagesource.StatusFailed
				} else {
					pages[idx].Status = pagesource.StatusDone
				}

				mu.Lock()
				completed++
				if s.onDone != nil {
					s.onDone(completed, res)
				}
				mu.Unlock()
			}
		}()
	}

	// Dispatch loop: the cancellation flag is checked before each new
	// dispatch, never mid-task.
	cancelled := false
dispatch:
	for idx := range pages {
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	if !cancelled && ctx.Err() != nil {
		// Signal arrived after the last dispatch.
		cancelled = true
	}

	if cancelled {
		var kept []correct.Result
		for i, ok := range done {
			if ok {
				kept = append(kept, results[i])
			}
		}
		return kept, fmt.Errorf("%w: %d of %d pages completed", ErrCancelled, len(kept), len(pages))
	}

	return results, nil
}
