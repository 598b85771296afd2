// Package merchant knows the merchant statement API: its endpoints, payload
// shapes and the sink tables they land in.
package merchant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/fetch"
	"github.com/dmitrijs2005/stmtsync/internal/paginate"
)

const (
	paymentsPath           = "merchant-statement/v1/payments"
	paymentInstallmentPath = "merchant-statement/v2/payments/installments/%s/%s"
	salesPath              = "merchant-statement/v2/sales"
	saleInstallmentPath    = "merchant-statement/v2/payments/installments/%s"
	receivablesPath        = "merchant-statement/v2/receivables/summary"

	salesPageSize = 100
)

// API calls the statement endpoints. Listings are streamed page by page;
// single-object endpoints return the decoded items along with the raw body.
type API struct {
	fetcher        paginate.Fetcher
	pages          *paginate.Paginator
	summaryTimeout time.Duration
}

func NewAPI(fetcher paginate.Fetcher, pages *paginate.Paginator, summaryTimeout time.Duration) *API {
	return &API{fetcher: fetcher, pages: pages, summaryTimeout: summaryTimeout}
}

func listingQuery(company, from, to string) url.Values {
	return url.Values{
		"startDate":           {from},
		"endDate":             {to},
		"parentCompanyNumber": {company},
		"subsidiaries":        {company},
	}
}

// Payments walks the payments of company between from and to.
func (a *API) Payments(ctx context.Context, company, from, to string, fn func(ctx context.Context, page paginate.Page, payments []Payment) error) error {
	req := fetch.Request{Path: paymentsPath, Query: listingQuery(company, from, to)}
	return a.pages.Each(ctx, req, func(ctx context.Context, page paginate.Page) error {
		payments, err := paginate.Field[Payment](page.Content, "payments")
		if err != nil {
			return fmt.Errorf("payments page %d: %w", page.Number, err)
		}
		return fn(ctx, page, payments)
	})
}

// Sales walks the sales of company between from and to.
func (a *API) Sales(ctx context.Context, company, from, to string, fn func(ctx context.Context, page paginate.Page, sales []Sale) error) error {
	q := listingQuery(company, from, to)
	q.Set("size", fmt.Sprint(salesPageSize))

	req := fetch.Request{Path: salesPath, Query: q}
	return a.pages.Each(ctx, req, func(ctx context.Context, page paginate.Page) error {
		sales, err := paginate.Field[Sale](page.Content, "transactions")
		if err != nil {
			return fmt.Errorf("sales page %d: %w", page.Number, err)
		}
		return fn(ctx, page, sales)
	})
}

// PaymentInstallments returns the sale detail of one payment.
func (a *API) PaymentInstallments(ctx context.Context, company, paymentID string) ([]PaymentInstallment, []byte, error) {
	req := fetch.Request{
		Path: fmt.Sprintf(paymentInstallmentPath, company, paymentID),
	}
	return getList[PaymentInstallment](ctx, a.fetcher, req, "installments")
}

// SaleInstallments returns the installments of the sale identified by
// merchant, nsu and sale date.
func (a *API) SaleInstallments(ctx context.Context, merchantID, nsu, saleDate string) ([]Installment, []byte, error) {
	req := fetch.Request{
		Path:  fmt.Sprintf(saleInstallmentPath, merchantID),
		Query: url.Values{"saleDate": {saleDate}, "nsu": {nsu}},
	}
	return getList[Installment](ctx, a.fetcher, req, "installments")
}

// ReceivablesSummary returns the receivables of company between from and to.
// An empty content list is a zero summary.
func (a *API) ReceivablesSummary(ctx context.Context, company, from, to string) (ReceivableSummary, []byte, error) {
	req := fetch.Request{
		Path: receivablesPath,
		Query: url.Values{
			"startDate":           {from},
			"endDate":             {to},
			"parentCompanyNumber": {company},
		},
		Timeout: a.summaryTimeout,
	}

	resp, err := a.fetcher.Do(ctx, req)
	if err != nil {
		return ReceivableSummary{}, nil, err
	}

	var body struct {
		Content []ReceivableSummary `json:"content"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return ReceivableSummary{}, resp.Body, fmt.Errorf("decode %s: %w", resp.URL, err)
	}
	if len(body.Content) == 0 {
		return ReceivableSummary{}, resp.Body, nil
	}
	return body.Content[0], resp.Body, nil
}

func getList[T any](ctx context.Context, f paginate.Fetcher, req fetch.Request, field string) ([]T, []byte, error) {
	resp, err := f.Do(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	var body struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, resp.Body, fmt.Errorf("decode %s: %w", resp.URL, err)
	}

	items, err := paginate.Field[T](body.Content, field)
	if err != nil {
		return nil, resp.Body, fmt.Errorf("decode %s: %w", resp.URL, err)
	}
	return items, resp.Body, nil
}
