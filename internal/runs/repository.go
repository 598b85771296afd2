// Package runs records every job execution in the ingest_runs table so that
// the outcome of past runs can be inspected from the sink itself.
package runs

import "context"

// Repository persists Run rows.
type Repository interface {
	// Start assigns an id when the run has none, marks it running and
	// inserts it.
	Start(ctx context.Context, r *Run) error

	// Finish stores the final status, counters and error of a started run.
	Finish(ctx context.Context, r *Run) error

	// Get returns the run with the given id or common.ErrorNotFound.
	Get(ctx context.Context, id string) (*Run, error)

	// Latest returns the most recently started run of job or
	// common.ErrorNotFound.
	Latest(ctx context.Context, job string) (*Run, error)
}
