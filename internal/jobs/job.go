// Package jobs wires the ingestion engine into the four statement jobs:
// payments, sales, installments and receivables.
//
// Every job runs one or more scheduling waves. A wave ends at a barrier
// after which the affected table is reconciled, so duplicates left by
// overlapping work items never outlive the run.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/archive"
	"github.com/dmitrijs2005/stmtsync/internal/logging"
	"github.com/dmitrijs2005/stmtsync/internal/merchant"
	"github.com/dmitrijs2005/stmtsync/internal/scheduler"
	"github.com/dmitrijs2005/stmtsync/internal/sink"
)

// Params selects what a single run covers.
type Params struct {
	Window Window
	RunID  string
	// Replace deletes the window's rows before ingesting it again.
	Replace bool
}

// Job is one kind of ingestion. Run returns an error only when the run could
// not proceed at all; failed work items are reported in the Summary.
type Job interface {
	Name() string
	Run(ctx context.Context, p Params) (*Summary, error)
}

type BatchSizes struct {
	Payments     int
	Sales        int
	Installments int
	Receivables  int
}

// Deps are the engine pieces shared by every job.
type Deps struct {
	API       *merchant.API
	Repo      *merchant.Repository
	Store     *sink.Store
	Archive   archive.Archiver
	Logger    logging.Logger
	Companies []string
	Batches   BatchSizes
	// Scheduler carries the concurrency and timeout settings of every wave.
	Scheduler scheduler.Options
}

func (d *Deps) wave(name string) scheduler.Options {
	opts := d.Scheduler
	opts.Name = name
	opts.Logger = d.Logger
	return opts
}

// keep archives a raw page. Archive failures never fail the item.
func (d *Deps) keep(ctx context.Context, job, runID, item string, page int, raw []byte) {
	if d.Archive == nil || len(raw) == 0 {
		return
	}
	if err := d.Archive.Put(ctx, archive.Key(job, runID, item, page), raw); err != nil {
		d.Logger.Warn(ctx, "archive failed", "job", job, "item", item, "page", page, "error", err)
	}
}

// Summary reports the outcome of one run.
type Summary struct {
	Job      string
	RunID    string
	Window   Window
	Items    int
	Failed   int
	Inserted int64
	Updated  int64
	Removed  int64
	Failures []scheduler.ItemError
	Elapsed  time.Duration

	mu sync.Mutex
}

func newSummary(job string, p Params) *Summary {
	return &Summary{Job: job, RunID: p.RunID, Window: p.Window}
}

func (s *Summary) addStats(st sink.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Inserted += st.Inserted
	s.Updated += st.Updated
}

func (s *Summary) addRemoved(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Removed += n
}

func (s *Summary) addReport(r *scheduler.Report) {
	if r == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items += r.Total
	s.Failed += r.Failed
	s.Failures = append(s.Failures, r.Failures...)
}

// Err joins the item failures.
func (s *Summary) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := make([]error, len(s.Failures))
	for i, f := range s.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// drain runs walk, flushes w whatever walk returned, and records what w
// wrote. Records fetched before a failure are kept.
func drain(ctx context.Context, sum *Summary, w *sink.Writer, walk func() error) error {
	err := walk()
	err = errors.Join(err, w.Flush(ctx))
	sum.addStats(w.Stats())
	return err
}

func (d *Deps) dedup(ctx context.Context, sum *Summary, t sink.Table) error {
	n, err := d.Store.Reconcile(ctx, t)
	if err != nil {
		return err
	}
	sum.addRemoved(n)
	return nil
}

func identity(s string) string { return s }
