package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", &url.Error{Op: "Get", URL: "u", Err: context.DeadlineExceeded}, true},
		{"eof", &url.Error{Op: "Get", URL: "u", Err: io.EOF}, true},
		{"unexpected eof", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("bad request"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	for i := 0; i < 50; i++ {
		d1 := backoff(1, 100*time.Millisecond, time.Second)
		assert.GreaterOrEqual(t, d1, 100*time.Millisecond)
		assert.LessOrEqual(t, d1, 150*time.Millisecond)

		d3 := backoff(3, 100*time.Millisecond, time.Second)
		assert.GreaterOrEqual(t, d3, 400*time.Millisecond)
		assert.LessOrEqual(t, d3, 600*time.Millisecond)

		d10 := backoff(10, 100*time.Millisecond, time.Second)
		assert.GreaterOrEqual(t, d10, time.Second)
		assert.LessOrEqual(t, d10, 1500*time.Millisecond)
	}
	assert.Zero(t, backoff(2, 0, time.Second))
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))
}
