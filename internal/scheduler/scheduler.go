// Package scheduler runs independent work items with bounded concurrency and
// collects per-item outcomes. One item failing never cancels its siblings.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is one worker per CPU, leaving one CPU free.
func DefaultConcurrency() int {
	return max(runtime.NumCPU()-1, 1)
}

type Options struct {
	// Name labels log lines, e.g. "payments" or "payments-detail".
	Name string
	// MaxConcurrency <= 0 means DefaultConcurrency.
	MaxConcurrency int
	// ItemTimeout bounds each item through its context; 0 disables it.
	ItemTimeout time.Duration
	// ProgressEvery enables a periodic progress line; 0 disables it.
	ProgressEvery time.Duration
	Logger        logging.Logger
}

// ItemError is the failure of one work item.
type ItemError struct {
	Key string
	Err error
}

func (e ItemError) Error() string { return e.Key + ": " + e.Err.Error() }
func (e ItemError) Unwrap() error { return e.Err }

// Report summarises a run. Failures are ordered as the items were given.
type Report struct {
	Name      string
	Total     int
	Succeeded int
	Failed    int
	Failures  []ItemError
	Elapsed   time.Duration
}

// Err joins every item failure, or returns nil when all items succeeded.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Run executes fn for every item and returns once all of them have finished.
// Items not yet started when ctx is cancelled are reported as failed with the
// context error. Panics inside fn are recovered into that item's error.
func Run[T any](ctx context.Context, items []T, key func(T) string, fn func(ctx context.Context, item T) error, opts Options) *Report {
	start := time.Now()
	limit := opts.MaxConcurrency
	if limit <= 0 {
		limit = DefaultConcurrency()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	log = log.With("wave", opts.Name)

	errs := make([]error, len(items))
	var done, failed atomic.Int64

	stopProgress := progress(ctx, log, opts.ProgressEvery, len(items), &done, &failed)
	defer stopProgress()

	log.Info(ctx, "wave started", "items", len(items), "concurrency", limit)

	g := new(errgroup.Group)
	g.SetLimit(limit)

	for i, item := range items {
		k := key(item)
		if err := ctx.Err(); err != nil {
			errs[i] = err
			done.Add(1)
			failed.Add(1)
			continue
		}

		log.Debug(ctx, "item state", "item", k, "state", StatePending)

		g.Go(func() error {
			ilog := log.With("item", k)
			ictx := withItemLogger(ctx, ilog)
			Mark(ictx, StateFetching)

			err := runItem(ictx, item, fn, opts.ItemTimeout)
			errs[i] = err

			done.Add(1)
			if err != nil {
				failed.Add(1)
				ilog.Warn(ictx, "item state", "state", StateFailed, "error", err)
			} else {
				Mark(ictx, StateDone)
			}
			// errors are collected per item; returning nil keeps siblings running
			return nil
		})
	}
	_ = g.Wait()

	r := &Report{Name: opts.Name, Total: len(items), Elapsed: time.Since(start)}
	for i, err := range errs {
		if err != nil {
			r.Failures = append(r.Failures, ItemError{Key: key(items[i]), Err: err})
		}
	}
	r.Failed = len(r.Failures)
	r.Succeeded = r.Total - r.Failed

	log.Info(ctx, "wave finished", "total", r.Total, "succeeded", r.Succeeded, "failed", r.Failed, "elapsed", r.Elapsed)
	return r
}

func runItem[T any](ctx context.Context, item T, fn func(context.Context, T) error, timeout time.Duration) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	return fn(ctx, item)
}

func progress(ctx context.Context, log logging.Logger, every time.Duration, total int, done, failed *atomic.Int64) func() {
	if every <= 0 {
		return func() {}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				log.Info(ctx, "wave progress", "done", done.Load(), "total", total, "failed", failed.Load())
			}
		}
	}()

	return func() {
		close(stop)
		wg.Wait()
	}
}
