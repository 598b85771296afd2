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

func receivablesServer(h *harness) {
	h.server.receivables = func(company, from, to string) (any, int) {
		if from == "2026-11-01" {
			return map[string]any{"content": []any{}}, http.StatusOK
		}
		return map[string]any{"content": []map[string]any{{"amount": 250.75, "total": 4}}}, http.StatusOK
	}
}

func TestReceivablesJob_Monthly(t *testing.T) {
	h := newHarness(t, "100", "200")
	receivablesServer(h)
	job := &ReceivablesJob{Deps: h.deps, Period: merchant.PeriodMonthly}
	p := Params{Window: Single(date(t, "2026-10-16")), RunID: "r"}

	sum, err := job.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "receivables-monthly", job.Name())
	assert.Equal(t, 26, sum.Items)
	assert.Zero(t, sum.Failed)
	assert.EqualValues(t, 26, sum.Inserted)

	assert.Equal(t, 1, testutil.Count(t, h.db, "receivables",
		"company_number = '100' AND start_date = '2026-10-01' AND end_date = '2026-10-31' AND amount = 250.75 AND total = 4"))
	assert.Equal(t, 2, testutil.Count(t, h.db, "receivables", "start_date = '2026-11-01' AND amount = 0"))
	assert.True(t, h.archive.has("raw/receivables-monthly/r/200_2027-10-01/00001.json"))

	// running again updates in place
	sum, err = job.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Zero(t, sum.Inserted)
	assert.EqualValues(t, 26, sum.Updated)
	assert.Equal(t, 26, testutil.Count(t, h.db, "receivables", ""))
}

func TestReceivablesJob_DailyRebuildsDailyRows(t *testing.T) {
	h := newHarness(t, "100")
	receivablesServer(h)
	ctx := context.Background()

	w := h.deps.Store.NewWriter(merchant.ReceivablesTable, 10)
	require.NoError(t, w.Write(ctx,
		sink.Record{"period": "daily", "start_date": "2026-09-01", "end_date": "2026-09-01", "company_number": "100"},
		sink.Record{"period": "monthly", "start_date": "2026-09-01", "end_date": "2026-09-30", "company_number": "100"},
	))
	require.NoError(t, w.Flush(ctx))

	job := &ReceivablesJob{Deps: h.deps, Period: merchant.PeriodDaily}
	sum, err := job.Run(ctx, Params{Window: Single(date(t, "2026-10-16"))})
	require.NoError(t, err)
	assert.Equal(t, 28, sum.Items)

	assert.Equal(t, 28, testutil.Count(t, h.db, "receivables", "period = 'daily'"))
	assert.Equal(t, 0, testutil.Count(t, h.db, "receivables", "start_date = '2026-10-17'"), "saturday")
	assert.Equal(t, 1, testutil.Count(t, h.db, "receivables", "period = 'monthly'"))
}

func TestReceivablesJob_UnknownPeriod(t *testing.T) {
	h := newHarness(t, "100")
	_, err := (&ReceivablesJob{Deps: h.deps, Period: "weekly"}).Run(context.Background(), Params{})
	require.Error(t, err)
}
