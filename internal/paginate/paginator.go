// Package paginate walks cursor-paginated API listings.
//
// Every listing shares one envelope:
//
//	{"content": {...}, "cursor": {"hasNextKey": true, "nextKey": "..."}}
//
// The cursor is sent back in the pageKey query parameter.
package paginate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/stmtsync/internal/fetch"
	"github.com/dmitrijs2005/stmtsync/internal/scheduler"
)

const DefaultCursorParam = "pageKey"

// ErrCursorLoop is returned when the API hands back a cursor already walked
// in this listing, which would otherwise repeat the same pages forever.
var ErrCursorLoop = errors.New("pagination cursor repeated")

// ErrMaxPages is returned when MaxPages pages were read and more remain.
var ErrMaxPages = errors.New("page limit reached")

// Fetcher is satisfied by *fetch.Client.
type Fetcher interface {
	Do(ctx context.Context, req fetch.Request) (*fetch.Response, error)
}

// Page is one decoded listing page. Number starts at 1.
type Page struct {
	Number  int
	Content json.RawMessage
	// Cursor is the key that fetched this page, empty for the first.
	Cursor  string
	NextKey string
	HasNext bool
	Raw     []byte
}

type envelope struct {
	Content json.RawMessage `json:"content"`
	Cursor  *struct {
		HasNextKey bool   `json:"hasNextKey"`
		NextKey    string `json:"nextKey"`
	} `json:"cursor"`
}

type Options struct {
	CursorParam string
	// MaxPages stops the walk with ErrMaxPages; 0 means unlimited.
	MaxPages int
}

type Paginator struct {
	fetcher Fetcher
	opts    Options
}

func New(fetcher Fetcher, opts Options) *Paginator {
	if opts.CursorParam == "" {
		opts.CursorParam = DefaultCursorParam
	}
	return &Paginator{fetcher: fetcher, opts: opts}
}

// Each requests pages in order, starting without a cursor, and calls fn for
// each one before requesting the next. Exactly one request is made per
// cursor. The walk ends when the API reports no next key, on the first fetch
// error, or when fn returns an error; that error is returned unchanged.
func (p *Paginator) Each(ctx context.Context, req fetch.Request, fn func(ctx context.Context, page Page) error) error {
	cursor := ""
	seen := map[string]struct{}{cursor: {}}

	for number := 1; ; number++ {
		if p.opts.MaxPages > 0 && number > p.opts.MaxPages {
			return fmt.Errorf("%w: %d", ErrMaxPages, p.opts.MaxPages)
		}

		if number > 1 {
			scheduler.Mark(ctx, scheduler.StatePaginating, "page", number)
		}
		page, err := p.fetch(ctx, req, cursor, number)
		if err != nil {
			return err
		}

		if err := fn(ctx, page); err != nil {
			return err
		}

		if !page.HasNext {
			return nil
		}
		if _, ok := seen[page.NextKey]; ok {
			return fmt.Errorf("%w: %q", ErrCursorLoop, page.NextKey)
		}
		seen[page.NextKey] = struct{}{}
		cursor = page.NextKey
	}
}

func (p *Paginator) fetch(ctx context.Context, req fetch.Request, cursor string, number int) (Page, error) {
	q := url.Values{}
	for k, v := range req.Query {
		q[k] = append([]string(nil), v...)
	}
	if cursor != "" {
		q.Set(p.opts.CursorParam, cursor)
	}
	req.Query = q

	resp, err := p.fetcher.Do(ctx, req)
	if err != nil {
		return Page{}, err
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return Page{}, fmt.Errorf("decode page %d of %s: %w", number, resp.URL, err)
	}

	page := Page{Number: number, Content: env.Content, Cursor: cursor, Raw: resp.Body}
	if env.Cursor != nil && env.Cursor.HasNextKey && env.Cursor.NextKey != "" {
		page.HasNext = true
		page.NextKey = env.Cursor.NextKey
	}
	return page, nil
}

// Field decodes content[field] as a list of T. A missing or null field is an
// empty list, which is how the API reports an empty page.
func Field[T any](content json.RawMessage, field string) ([]T, error) {
	if len(content) == 0 || string(content) == "null" {
		return nil, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(content, &obj); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}

	raw, ok := obj[field]
	if !ok || string(raw) == "null" {
		return nil, nil
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode content.%s: %w", field, err)
	}
	return out, nil
}
