package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/merchant"
	"github.com/dmitrijs2005/stmtsync/internal/paginate"
	"github.com/dmitrijs2005/stmtsync/internal/scheduler"
	"github.com/dmitrijs2005/stmtsync/internal/sink"
)

// SalesJob ingests the sales of every company over the whole window in one
// wave.
type SalesJob struct {
	*Deps
}

func (j *SalesJob) Name() string { return "sales" }

func (j *SalesJob) Run(ctx context.Context, p Params) (*Summary, error) {
	start := time.Now()
	sum := newSummary(j.Name(), p)
	defer func() { sum.Elapsed = time.Since(start) }()

	if p.Window.IsZero() {
		return sum, fmt.Errorf("sales need a date window")
	}
	from, to := p.Window.FromDate(), p.Window.ToDate()

	if p.Replace {
		n, err := j.Store.DeleteWindow(ctx, merchant.SalesTable, from, to)
		if err != nil {
			return sum, fmt.Errorf("purge sales %s: %w", p.Window, err)
		}
		j.Logger.Info(ctx, "sales purged", "window", p.Window.String(), "rows", n)
	}

	report := scheduler.Run(ctx, j.Companies, identity, func(ctx context.Context, company string) error {
		w := j.Store.NewWriter(merchant.SalesTable, j.Batches.Sales)
		return drain(ctx, sum, w, func() error {
			return j.API.Sales(ctx, company, from, to, func(ctx context.Context, page paginate.Page, sales []merchant.Sale) error {
				j.keep(ctx, j.Name(), p.RunID, company, page.Number, page.Raw)

				records := make([]sink.Record, len(sales))
				for i, s := range sales {
					records[i] = s.Record()
				}
				return w.Write(ctx, records...)
			})
		})
	}, j.wave("sales "+p.Window.String()))
	sum.addReport(report)

	return sum, j.dedup(ctx, sum, merchant.SalesTable)
}
