package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/merchant"
	"github.com/dmitrijs2005/stmtsync/internal/paginate"
	"github.com/dmitrijs2005/stmtsync/internal/reconcile"
	"github.com/dmitrijs2005/stmtsync/internal/scheduler"
	"github.com/dmitrijs2005/stmtsync/internal/sink"
)

// PaymentsJob ingests consolidated payments day by day. Each day runs a wave
// over the companies, then a detail pass over the day's payments that still
// lack their sale detail.
type PaymentsJob struct {
	*Deps
}

func (j *PaymentsJob) Name() string { return "payments" }

func (j *PaymentsJob) Run(ctx context.Context, p Params) (*Summary, error) {
	start := time.Now()
	sum := newSummary(j.Name(), p)
	defer func() { sum.Elapsed = time.Since(start) }()

	if p.Window.IsZero() {
		return sum, fmt.Errorf("payments need a date window")
	}

	if p.Replace {
		n, err := j.Store.DeleteWindow(ctx, merchant.PaymentsTable, p.Window.FromDate(), p.Window.ToDate())
		if err != nil {
			return sum, fmt.Errorf("purge payments %s: %w", p.Window, err)
		}
		j.Logger.Info(ctx, "payments purged", "window", p.Window.String(), "rows", n)
	}

	for _, day := range p.Window.Days() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := j.runDay(ctx, sum, p.RunID, day); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (j *PaymentsJob) runDay(ctx context.Context, sum *Summary, runID, day string) error {
	report := j.ingestDay(ctx, sum, runID, day)
	sum.addReport(report)

	if err := j.dedup(ctx, sum, merchant.PaymentsTable); err != nil {
		return err
	}

	pass := reconcile.Pass[merchant.PaymentRef]{
		Name: "payments-detail " + day,
		Select: func(ctx context.Context) ([]merchant.PaymentRef, error) {
			return j.Repo.PaymentsMissingDetail(ctx, day)
		},
		Key: func(ref merchant.PaymentRef) string {
			return ref.CompanyNumber + "/" + ref.PaymentID
		},
		Apply: func(ctx context.Context, ref merchant.PaymentRef) error {
			return j.fillDetail(ctx, sum, runID, ref)
		},
	}
	report, err := pass.Run(ctx, j.wave(pass.Name))
	if err != nil {
		return err
	}
	sum.addReport(report)

	return j.dedup(ctx, sum, merchant.PaymentsTable)
}

func (j *PaymentsJob) ingestDay(ctx context.Context, sum *Summary, runID, day string) *scheduler.Report {
	return scheduler.Run(ctx, j.Companies, identity, func(ctx context.Context, company string) error {
		w := j.Store.NewWriter(merchant.PaymentsTable, j.Batches.Payments)
		return drain(ctx, sum, w, func() error {
			return j.API.Payments(ctx, company, day, day, func(ctx context.Context, page paginate.Page, payments []merchant.Payment) error {
				j.keep(ctx, j.Name(), runID, company+"_"+day, page.Number, page.Raw)

				records := make([]sink.Record, len(payments))
				for i, p := range payments {
					records[i] = p.Record()
				}
				return w.Write(ctx, records...)
			})
		})
	}, j.wave("payments "+day))
}

// fillDetail copies the sale detail onto the payment row. When a payment has
// several installments the last one wins.
func (j *PaymentsJob) fillDetail(ctx context.Context, sum *Summary, runID string, ref merchant.PaymentRef) error {
	installments, raw, err := j.API.PaymentInstallments(ctx, ref.CompanyNumber, ref.PaymentID)
	j.keep(ctx, j.Name()+"-detail", runID, ref.CompanyNumber+"_"+ref.PaymentID, 1, raw)
	if err != nil {
		return err
	}
	if len(installments) == 0 {
		return nil
	}

	updates := make([]sink.Update, len(installments))
	for i, inst := range installments {
		updates[i] = sink.Update{ID: ref.ID, Values: inst.DetailRecord()}
	}
	st, err := j.Store.UpdateByID(ctx, merchant.PaymentsTable, updates, j.Batches.Payments)
	sum.addStats(st)
	return err
}
