package scheduler

import (
	"context"

	"github.com/dmitrijs2005/stmtsync/internal/logging"
)

// State is the lifecycle stage of a work item, used as a log attribute.
type State string

const (
	StatePending    State = "PENDING"
	StateFetching   State = "FETCHING"
	StatePaginating State = "PAGINATING"
	StateWriting    State = "WRITING"
	StateAuthRetry  State = "AUTH_RETRY"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

type itemLoggerKey struct{}

func withItemLogger(ctx context.Context, l logging.Logger) context.Context {
	return context.WithValue(ctx, itemLoggerKey{}, l)
}

// Mark logs that the work item running under ctx entered s. It does nothing
// outside a scheduled item.
func Mark(ctx context.Context, s State, args ...any) {
	l, ok := ctx.Value(itemLoggerKey{}).(logging.Logger)
	if !ok {
		return
	}
	l.Debug(ctx, "item state", append([]any{"state", s}, args...)...)
}
