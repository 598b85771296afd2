package fetch

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"syscall"
	"time"
)

// IsTransient reports whether err is a network-level failure worth retrying:
// timeouts, resets, refused or aborted connections and truncated bodies.
// HTTP status codes are never transient here.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// backoff returns the wait before retry number attempt (1-based): exponential
// from initial, capped at maxWait, plus up to 50% jitter.
func backoff(attempt int, initial, maxWait time.Duration) time.Duration {
	if initial <= 0 {
		return 0
	}
	d := initial << (attempt - 1)
	if d <= 0 || (maxWait > 0 && d > maxWait) {
		d = maxWait
	}
	return d + rand.N(d/2+1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
