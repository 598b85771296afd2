package jobs

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/common"
)

// Window is an inclusive range of calendar days. The zero Window means "no
// date restriction" to jobs that accept one.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) IsZero() bool { return w.From.IsZero() && w.To.IsZero() }

func (w Window) FromDate() string { return formatDate(w.From) }
func (w Window) ToDate() string   { return formatDate(w.To) }

func (w Window) String() string {
	if w.IsZero() {
		return "all"
	}
	return w.FromDate() + ".." + w.ToDate()
}

func (w Window) Validate() error {
	if w.IsZero() {
		return nil
	}
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("window %s is open-ended", w)
	}
	if w.To.Before(w.From) {
		return fmt.Errorf("window end %s is before its start %s", w.ToDate(), w.FromDate())
	}
	return nil
}

// Days lists every day of the window in order.
func (w Window) Days() []string {
	if w.IsZero() || w.To.Before(w.From) {
		return nil
	}
	var out []string
	for d := day(w.From); !d.After(day(w.To)); d = d.AddDate(0, 0, 1) {
		out = append(out, formatDate(d))
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(common.DateLayout)
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD and YYYYMMDD.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{common.DateLayout, "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q is neither YYYY-MM-DD nor YYYYMMDD", s)
}

// Single is the window of one day.
func Single(t time.Time) Window {
	return Window{From: day(t), To: day(t)}
}

// LastDays is D-n through D-1 relative to now.
func LastDays(now time.Time, n int) Window {
	today := day(now)
	return Window{From: today.AddDate(0, 0, -n), To: today.AddDate(0, 0, -1)}
}

// Yesterday is D-1.
func Yesterday(now time.Time) Window {
	return Single(day(now).AddDate(0, 0, -1))
}

// PreviousMonth covers the whole calendar month before now.
func PreviousMonth(now time.Time) Window {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{From: first.AddDate(0, -1, 0), To: first.AddDate(0, 0, -1)}
}

// Months returns n consecutive calendar months, the first being the month of
// start.
func Months(start time.Time, n int) []Window {
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]Window, 0, n)
	for i := 0; i < n; i++ {
		from := first.AddDate(0, i, 0)
		out = append(out, Window{From: from, To: from.AddDate(0, 1, -1)})
	}
	return out
}

// Weekdays returns the single-day windows among the n days starting at
// start, leaving out Saturdays and Sundays.
func Weekdays(start time.Time, n int) []Window {
	var out []Window
	for i := 0; i < n; i++ {
		d := day(start).AddDate(0, 0, i)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, Single(d))
	}
	return out
}
