package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/merchant"
	"github.com/dmitrijs2005/stmtsync/internal/scheduler"
)

const (
	receivableMonths = 13
	receivableDays   = 40
)

// ReceivablesJob stores receivables summaries per company: thirteen
// calendar months, or forty days without weekends, counted from the window
// start. The daily set is rebuilt from scratch on every run.
type ReceivablesJob struct {
	*Deps
	Period merchant.Period
}

func (j *ReceivablesJob) Name() string { return "receivables-" + string(j.Period) }

type receivableItem struct {
	company string
	window  Window
}

func (j *ReceivablesJob) Run(ctx context.Context, p Params) (*Summary, error) {
	start := time.Now()
	sum := newSummary(j.Name(), p)
	defer func() { sum.Elapsed = time.Since(start) }()

	origin := p.Window.From
	if origin.IsZero() {
		origin = time.Now()
	}

	var periods []Window
	switch j.Period {
	case merchant.PeriodMonthly:
		periods = Months(origin, receivableMonths)
	case merchant.PeriodDaily:
		periods = Weekdays(origin, receivableDays)
		n, err := j.Store.DeleteWhere(ctx, merchant.ReceivablesTable, "period", string(merchant.PeriodDaily))
		if err != nil {
			return sum, fmt.Errorf("purge daily receivables: %w", err)
		}
		j.Logger.Info(ctx, "daily receivables purged", "rows", n)
	default:
		return sum, fmt.Errorf("unknown receivables period %q", j.Period)
	}

	var items []receivableItem
	for _, company := range j.Companies {
		for _, w := range periods {
			items = append(items, receivableItem{company: company, window: w})
		}
	}

	key := func(it receivableItem) string { return it.company + "_" + it.window.FromDate() }

	report := scheduler.Run(ctx, items, key, func(ctx context.Context, it receivableItem) error {
		from, to := it.window.FromDate(), it.window.ToDate()

		summary, raw, err := j.API.ReceivablesSummary(ctx, it.company, from, to)
		j.keep(ctx, j.Name(), p.RunID, key(it), 1, raw)
		if err != nil {
			return err
		}

		w := j.Store.NewWriter(merchant.ReceivablesTable, j.Batches.Receivables)
		return drain(ctx, sum, w, func() error {
			return w.Write(ctx, summary.Record(j.Period, from, to, it.company))
		})
	}, j.wave(j.Name()))
	sum.addReport(report)

	return sum, j.dedup(ctx, sum, merchant.ReceivablesTable)
}
