// Package reconcile runs the second scheduling wave: it selects persisted
// rows whose detail is missing or stale and re-fetches only those.
package reconcile

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/stmtsync/internal/scheduler"
)

// Pass describes one reconciliation wave over a sink table.
type Pass[T any] struct {
	Name string
	// Select queries the sink for incomplete rows. It must read durable state
	// only so that a crashed run can be resumed by running the pass again.
	Select func(ctx context.Context) ([]T, error)
	// Key labels an item in logs and failure reports.
	Key func(T) string
	// Apply fetches the missing detail for one item and writes it.
	Apply func(ctx context.Context, item T) error
}

// Run selects the incomplete rows and schedules Apply for each of them. The
// error is non-nil only when selection fails; per-item failures are in the
// report.
func (p Pass[T]) Run(ctx context.Context, opts scheduler.Options) (*scheduler.Report, error) {
	items, err := p.Select(ctx)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", p.Name, err)
	}

	if opts.Name == "" {
		opts.Name = p.Name
	}
	return scheduler.Run(ctx, items, p.Key, p.Apply, opts), nil
}
