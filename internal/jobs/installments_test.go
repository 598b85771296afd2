package jobs

import (
	"context"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/stmtsync/internal/merchant"
	"github.com/dmitrijs2005/stmtsync/internal/sink"
	"github.com/dmitrijs2005/stmtsync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallmentsJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w := h.deps.Store.NewWriter(merchant.SalesTable, 10)
	require.NoError(t, w.Write(ctx,
		sink.Record{"nsu": "s1", "company_number": "100", "sale_date": "2026-10-01", "installment_quantity": 2},
		sink.Record{"nsu": "s2", "company_number": "100", "sale_date": "2026-10-01", "installment_quantity": 0},
		sink.Record{"nsu": "s3", "company_number": "200", "sale_date": "2026-10-02", "installment_quantity": 3},
	))
	require.NoError(t, w.Flush(ctx))

	// s1 settles its second installment between the two passes; s3 is gone
	h.server.saleInstallments = func(merchantID, nsu, saleDate string, call int) (any, int) {
		if nsu == "s3" {
			return nil, http.StatusNotFound
		}
		second := "PENDING"
		if call > 1 {
			second = "PAID"
		}
		return map[string]any{"content": map[string]any{"installments": []map[string]any{
			{"installmentNumber": 1, "installmentQuantity": 2, "status": "PAID", "amountInfo": map[string]any{"amount": 50}},
			{"installmentNumber": 2, "installmentQuantity": 2, "status": second, "amountInfo": map[string]any{"amount": 50}},
		}}}, http.StatusOK
	}

	job := &InstallmentsJob{Deps: h.deps}
	sum, err := job.Run(ctx, Params{RunID: "r"})
	require.NoError(t, err)

	// pass one: s1 and s3; pass two: s1 again
	assert.Equal(t, 3, sum.Items)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, "200_s3_2026-10-02", sum.Failures[0].Key)
	assert.EqualValues(t, 2, sum.Inserted)
	assert.EqualValues(t, 2, sum.Updated)

	assert.Equal(t, []string{"PAID", "PAID"}, h.column(t, `SELECT status FROM installments ORDER BY installment_number`))
	assert.Equal(t, 2, testutil.Count(t, h.db, "installments", "merchant_id = '100' AND sale_date = '2026-10-01'"))
	assert.True(t, h.archive.has("raw/installments-status/r/100_s1_2026-10-01/00001.json"))

	// only the vanished sale is selected again
	sum, err = job.Run(ctx, Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Items)
	assert.Equal(t, 2, testutil.Count(t, h.db, "installments", ""))
}

func TestInstallmentsJob_WindowRestrictsSales(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w := h.deps.Store.NewWriter(merchant.SalesTable, 10)
	require.NoError(t, w.Write(ctx,
		sink.Record{"nsu": "old", "company_number": "100", "sale_date": "2026-01-01", "installment_quantity": 2},
		sink.Record{"nsu": "new", "company_number": "100", "sale_date": "2026-10-10", "installment_quantity": 2},
	))
	require.NoError(t, w.Flush(ctx))

	var seen []string
	h.server.saleInstallments = func(merchantID, nsu, saleDate string, call int) (any, int) {
		seen = append(seen, nsu)
		return map[string]any{"content": map[string]any{"installments": []map[string]any{
			{"installmentNumber": 1, "status": "PAID"},
		}}}, http.StatusOK
	}

	window := Window{From: date(t, "2026-10-01"), To: date(t, "2026-10-31")}
	sum, err := (&InstallmentsJob{Deps: h.deps}).Run(ctx, Params{Window: window})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Items)
	assert.Equal(t, []string{"new"}, seen)
}
