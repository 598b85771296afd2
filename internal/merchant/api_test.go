package merchant

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/common"
	"github.com/dmitrijs2005/stmtsync/internal/fetch"
	"github.com/dmitrijs2005/stmtsync/internal/paginate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu       sync.Mutex
	requests []fetch.Request
	respond  func(req fetch.Request) (string, error)
}

func (f *fakeFetcher) Do(_ context.Context, req fetch.Request) (*fetch.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	body, err := f.respond(req)
	if err != nil {
		return nil, err
	}
	return &fetch.Response{StatusCode: 200, Body: []byte(body), URL: req.Path + "?" + req.Query.Encode()}, nil
}

func newAPI(f *fakeFetcher) *API {
	return NewAPI(f, paginate.New(f, paginate.Options{}), 10*time.Second)
}

func TestAPI_PaymentsFollowsCursor(t *testing.T) {
	f := &fakeFetcher{respond: func(req fetch.Request) (string, error) {
		if req.Query.Get("pageKey") == "" {
			return `{"content":{"payments":[{"paymentId":1},{"paymentId":2}]},"cursor":{"hasNextKey":true,"nextKey":"k2"}}`, nil
		}
		return `{"content":{"payments":[{"paymentId":3}]},"cursor":{"hasNextKey":false}}`, nil
	}}

	var ids []Flex
	var pages []int
	err := newAPI(f).Payments(context.Background(), "123", "2026-10-14", "2026-10-14",
		func(_ context.Context, page paginate.Page, payments []Payment) error {
			pages = append(pages, page.Number)
			for _, p := range payments {
				ids = append(ids, p.PaymentID)
			}
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, []Flex{"1", "2", "3"}, ids)
	assert.Equal(t, []int{1, 2}, pages)
	require.Len(t, f.requests, 2)

	q := f.requests[0].Query
	assert.Equal(t, paymentsPath, f.requests[0].Path)
	assert.Equal(t, url.Values{
		"startDate": {"2026-10-14"}, "endDate": {"2026-10-14"},
		"parentCompanyNumber": {"123"}, "subsidiaries": {"123"},
	}, q)
	assert.Equal(t, "k2", f.requests[1].Query.Get("pageKey"))
}

func TestAPI_SalesPageSize(t *testing.T) {
	f := &fakeFetcher{respond: func(fetch.Request) (string, error) {
		return `{"content":{"transactions":[{"nsu":"9"}]}}`, nil
	}}

	var got []Sale
	err := newAPI(f).Sales(context.Background(), "123", "2026-10-01", "2026-10-07",
		func(_ context.Context, _ paginate.Page, sales []Sale) error {
			got = append(got, sales...)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100", f.requests[0].Query.Get("size"))
	assert.Equal(t, salesPath, f.requests[0].Path)
}

func TestAPI_EmptyPageStopsCleanly(t *testing.T) {
	f := &fakeFetcher{respond: func(fetch.Request) (string, error) { return `{"content":{}}`, nil }}

	calls := 0
	err := newAPI(f).Payments(context.Background(), "1", "d", "d",
		func(_ context.Context, _ paginate.Page, payments []Payment) error {
			calls++
			assert.Empty(t, payments)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestAPI_PaymentInstallments(t *testing.T) {
	f := &fakeFetcher{respond: func(fetch.Request) (string, error) {
		return `{"content":{"installments":[{"installmentNumber":1,"nsu":777}]}}`, nil
	}}

	items, raw, err := newAPI(f).PaymentInstallments(context.Background(), "123", "991")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, Flex("777"), items[0].NSU)
	assert.NotEmpty(t, raw)
	assert.Equal(t, "merchant-statement/v2/payments/installments/123/991", f.requests[0].Path)
}

func TestAPI_SaleInstallments(t *testing.T) {
	f := &fakeFetcher{respond: func(fetch.Request) (string, error) {
		return `{"content":{"installments":[{"installmentNumber":1,"status":"PAID"},{"installmentNumber":2,"status":"PENDING"}]}}`, nil
	}}

	items, _, err := newAPI(f).SaleInstallments(context.Background(), "123", "555", "2026-10-01")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	req := f.requests[0]
	assert.Equal(t, "merchant-statement/v2/payments/installments/123", req.Path)
	assert.Equal(t, "555", req.Query.Get("nsu"))
	assert.Equal(t, "2026-10-01", req.Query.Get("saleDate"))
}

func TestAPI_ReceivablesSummary(t *testing.T) {
	f := &fakeFetcher{respond: func(req fetch.Request) (string, error) {
		if req.Query.Get("parentCompanyNumber") == "empty" {
			return `{"content":[]}`, nil
		}
		return `{"content":[{"amount":1500.5,"total":12}]}`, nil
	}}
	api := newAPI(f)

	s, _, err := api.ReceivablesSummary(context.Background(), "123", "2026-10-01", "2026-10-31")
	require.NoError(t, err)
	assert.Equal(t, ReceivableSummary{Amount: 1500.5, Total: 12}, s)
	assert.Equal(t, 10*time.Second, f.requests[0].Timeout)
	assert.Empty(t, f.requests[0].Query.Get("subsidiaries"))

	s, _, err = api.ReceivablesSummary(context.Background(), "empty", "2026-10-01", "2026-10-31")
	require.NoError(t, err)
	assert.Zero(t, s)
}

func TestAPI_ErrorsPropagate(t *testing.T) {
	fe := &common.FetchError{StatusCode: 500, URL: "x"}
	f := &fakeFetcher{respond: func(fetch.Request) (string, error) { return "", fe }}

	_, _, err := newAPI(f).SaleInstallments(context.Background(), "1", "2", "3")
	var got *common.FetchError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 500, got.StatusCode)

	bad := &fakeFetcher{respond: func(fetch.Request) (string, error) { return `{"content":{"installments":"nope"}}`, nil }}
	_, raw, err := newAPI(bad).SaleInstallments(context.Background(), "1", "2", "3")
	require.Error(t, err)
	assert.NotEmpty(t, raw)
	assert.False(t, errors.Is(err, common.ErrAuth))
}
