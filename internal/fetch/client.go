// Package fetch issues authenticated API requests with bounded retries for
// network-level failures and a single credential refresh on 401.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/auth"
	"github.com/dmitrijs2005/stmtsync/internal/common"
	"github.com/dmitrijs2005/stmtsync/internal/logging"
	"github.com/dmitrijs2005/stmtsync/internal/scheduler"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 32 << 20

// Tokens is the part of auth.Store the client depends on.
type Tokens interface {
	Current() auth.Credential
	RefreshIfStale(ctx context.Context, observed string) (auth.Credential, error)
}

// Request describes one API call. Path is resolved against the client's base
// URL. Timeout overrides the per-attempt default when non-zero.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    []byte
	Timeout time.Duration
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

type Options struct {
	BaseURL        string
	Timeout        time.Duration
	RetryMax       int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// RateLimit is requests per second across all callers; 0 disables it.
	RateLimit float64
	RateBurst int
	// RefreshSkew triggers a refresh before sending when the credential
	// expires within this margin.
	RefreshSkew time.Duration
	UserAgent   string
}

type Client struct {
	base    *url.URL
	http    *http.Client
	tokens  Tokens
	limiter *rate.Limiter
	opts    Options
	logger  logging.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(httpClient *http.Client, tokens Tokens, opts Options, logger logging.Logger) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.RetryMax < 1 {
		opts.RetryMax = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))
	}

	return &Client{
		base:    base,
		http:    httpClient,
		tokens:  tokens,
		limiter: limiter,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepCtx,
	}, nil
}

// Do sends req with the current bearer token.
//
// A 401 causes exactly one credential refresh and one re-issue; a second 401
// fails with common.ErrAuth. A refresh performed up front because the
// credential had already expired counts as that one refresh; acquiring the
// first credential of an empty store does not. Any other
// non-2xx status is returned as *common.FetchError without retrying.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target := c.resolve(req)

	cred := c.tokens.Current()
	refreshed := false

	if cred.Empty() || cred.Expired(c.now(), c.opts.RefreshSkew) {
		var err error
		refreshed = !cred.Empty()
		cred, err = c.tokens.RefreshIfStale(ctx, cred.AccessToken)
		if err != nil {
			return nil, err
		}
	}

	for {
		resp, err := c.send(ctx, req, target, cred.AccessToken)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			scheduler.Mark(ctx, scheduler.StateAuthRetry, "url", target)
			refreshed = true
			cred, err = c.tokens.RefreshIfStale(ctx, cred.AccessToken)
			if err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, &common.FetchError{StatusCode: resp.StatusCode, URL: target, Err: common.ErrAuth}
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &common.FetchError{StatusCode: resp.StatusCode, URL: target, Err: bodyError(resp.Body)}
		}

		return resp, nil
	}
}

// send performs one logical request, retrying transient network failures.
func (c *Client) send(ctx context.Context, req Request, target, token string) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt < c.opts.RetryMax; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, backoff(attempt, c.opts.BackoffInitial, c.opts.BackoffMax)); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.attempt(ctx, req, target, token)
		if err == nil {
			return resp, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) {
			return nil, &common.FetchError{URL: target, Err: err}
		}

		lastErr = err
		c.logger.Warn(ctx, "transient fetch failure", "url", target, "attempt", attempt+1, "error", err)
	}

	return nil, &common.FetchError{
		URL: target,
		Err: fmt.Errorf("%w after %d attempts: %w", common.ErrTransient, c.opts.RetryMax, lastErr),
	}
}

func (c *Client) attempt(ctx context.Context, req Request, target, token string) (*Response, error) {
	timeout := c.opts.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(actx, method, target, body)
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if c.opts.UserAgent != "" {
		hreq.Header.Set("User-Agent", c.opts.UserAgent)
	}
	hreq.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data, URL: target}, nil
}

func (c *Client) resolve(req Request) string {
	u := c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(req.Path, "/")})
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String()
}

func bodyError(body []byte) error {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if s == "" {
		return nil
	}
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return fmt.Errorf("response: %s", s)
}
