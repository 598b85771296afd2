// Package notify reports the outcome of finished runs.
package notify

import (
	"context"

	"github.com/dmitrijs2005/stmtsync/internal/jobs"
	"github.com/dmitrijs2005/stmtsync/internal/logging"
)

// Notifier receives the summary of every finished run.
type Notifier interface {
	Notify(ctx context.Context, s *jobs.Summary) error
}

// maxListed caps the failures written per summary.
const maxListed = 20

// LogNotifier writes the summary through a logger: one line for the run and
// one per failed item, up to maxListed.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, s *jobs.Summary) error {
	log := n.logger.With("job", s.Job, "run", s.RunID)

	args := []any{
		"window", s.Window.String(),
		"items", s.Items,
		"failed", s.Failed,
		"inserted", s.Inserted,
		"updated", s.Updated,
		"removed", s.Removed,
		"elapsed", s.Elapsed.String(),
	}
	if s.Failed == 0 {
		log.Info(ctx, "run finished", args...)
		return nil
	}

	log.Warn(ctx, "run finished with failures", args...)
	for i, f := range s.Failures {
		if i == maxListed {
			log.Warn(ctx, "more failures omitted", "count", len(s.Failures)-maxListed)
			break
		}
		log.Warn(ctx, "item failed", "item", f.Key, "error", f.Err)
	}
	return nil
}
