package jobs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/merchant"
	"github.com/dmitrijs2005/stmtsync/internal/reconcile"
	"github.com/dmitrijs2005/stmtsync/internal/sink"
)

// InstallmentsJob completes the installment breakdown of stored sales. The
// first pass fetches sales that have no installment rows yet; the second
// refreshes installments whose status is not final. A zero window selects
// every stored sale.
type InstallmentsJob struct {
	*Deps
}

func (j *InstallmentsJob) Name() string { return "installments" }

func (j *InstallmentsJob) Run(ctx context.Context, p Params) (*Summary, error) {
	start := time.Now()
	sum := newSummary(j.Name(), p)
	defer func() { sum.Elapsed = time.Since(start) }()

	if err := j.dedup(ctx, sum, merchant.InstallmentsTable); err != nil {
		return sum, err
	}

	passes := []reconcile.Pass[merchant.SaleRef]{
		{
			Name: "installments-missing",
			Select: func(ctx context.Context) ([]merchant.SaleRef, error) {
				return j.Repo.SalesMissingInstallments(ctx, p.Window.FromDate(), p.Window.ToDate())
			},
		},
		{
			Name:   "installments-status",
			Select: j.Repo.InstallmentsPendingStatus,
		},
	}

	for _, pass := range passes {
		pass.Key = saleKey
		pass.Apply = func(ctx context.Context, ref merchant.SaleRef) error {
			return j.fetchSale(ctx, sum, p.RunID, pass.Name, ref)
		}

		report, err := pass.Run(ctx, j.wave(pass.Name))
		if err != nil {
			return sum, err
		}
		sum.addReport(report)
	}

	return sum, j.dedup(ctx, sum, merchant.InstallmentsTable)
}

func saleKey(ref merchant.SaleRef) string {
	return ref.MerchantID + "_" + ref.NSU + "_" + ref.SaleDate
}

func (j *InstallmentsJob) fetchSale(ctx context.Context, sum *Summary, runID, pass string, ref merchant.SaleRef) error {
	installments, raw, err := j.API.SaleInstallments(ctx, ref.MerchantID, ref.NSU, ref.SaleDate)
	j.keep(ctx, pass, runID, saleKey(ref), 1, raw)
	if err != nil {
		return err
	}

	w := j.Store.NewWriter(merchant.InstallmentsTable, j.Batches.Installments)
	return drain(ctx, sum, w, func() error {
		records := make([]sink.Record, len(installments))
		for i, inst := range installments {
			records[i] = inst.Record(ref.NSU, ref.MerchantID, ref.SaleDate)
		}
		return w.Write(ctx, records...)
	})
}
