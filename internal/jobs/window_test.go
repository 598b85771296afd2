package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestParseDate(t *testing.T) {
	a, err := ParseDate("2026-10-16")
	require.NoError(t, err)
	b, err := ParseDate("20261016")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	_, err = ParseDate("16/10/2026")
	assert.Error(t, err)
}

func TestLastDaysAndYesterday(t *testing.T) {
	now := time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

	w := LastDays(now, 7)
	assert.Equal(t, "2026-10-09", w.FromDate())
	assert.Equal(t, "2026-10-15", w.ToDate())
	assert.Len(t, w.Days(), 7)

	assert.Equal(t, "2026-10-15..2026-10-15", Yesterday(now).String())
}

func TestPreviousMonth(t *testing.T) {
	w := PreviousMonth(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-02-01", w.FromDate())
	assert.Equal(t, "2026-02-28", w.ToDate())

	w = PreviousMonth(time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-12-01", w.FromDate())
	assert.Equal(t, "2026-12-31", w.ToDate())
}

func TestMonths(t *testing.T) {
	ms := Months(date(t, "2027-11-20"), 13)
	require.Len(t, ms, 13)
	assert.Equal(t, "2027-11-01..2027-11-30", ms[0].String())
	assert.Equal(t, "2028-02-01..2028-02-29", ms[3].String())
	assert.Equal(t, "2028-11-01..2028-11-30", ms[12].String())
}

func TestWeekdays(t *testing.T) {
	// 2026-10-16 is a Friday
	ws := Weekdays(date(t, "2026-10-16"), 4)
	require.Len(t, ws, 2)
	assert.Equal(t, "2026-10-16", ws[0].FromDate())
	assert.Equal(t, "2026-10-19", ws[1].FromDate())

	assert.Len(t, Weekdays(date(t, "2026-10-16"), 40), 28)
}

func TestWindowValidate(t *testing.T) {
	assert.NoError(t, Window{}.Validate())
	assert.Empty(t, Window{}.Days())
	assert.Equal(t, "all", Window{}.String())
	assert.Error(t, Window{From: date(t, "2026-10-02"), To: date(t, "2026-10-01")}.Validate())
	assert.Error(t, Window{From: date(t, "2026-10-02")}.Validate())
}
