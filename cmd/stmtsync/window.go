package main

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/jobs"
	"github.com/spf13/cobra"
)

var now = time.Now

const defaultLastDays = 7

type windowFlags struct {
	from, to      string
	last          int
	lastSet       bool
	yesterday     bool
	previousMonth bool
	replace       bool
}

func (f *windowFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.from, "from", "", "first day (YYYY-MM-DD or YYYYMMDD)")
	fs.StringVar(&f.to, "to", "", "last day, defaults to --from")
	fs.IntVar(&f.last, "last", defaultLastDays, "the N days before today")
	fs.BoolVar(&f.yesterday, "yesterday", false, "only the day before today")
	fs.BoolVar(&f.previousMonth, "previous-month", false, "the previous calendar month, replacing stored rows")
	fs.BoolVar(&f.replace, "replace", false, "delete the window's rows before ingesting")
}

// params turns the flags into run parameters. Without any window flag the
// last defaultLastDays days are used, or no window at all when needsWindow
// is false.
func (f *windowFlags) params(now time.Time, needsWindow bool) (jobs.Params, error) {
	p := jobs.Params{Replace: f.replace}

	chosen := 0
	for _, set := range []bool{f.from != "" || f.to != "", f.lastSet, f.yesterday, f.previousMonth} {
		if set {
			chosen++
		}
	}
	if chosen > 1 {
		return p, errors.New("use only one of --from/--to, --last, --yesterday and --previous-month")
	}

	switch {
	case f.from != "" || f.to != "":
		if f.from == "" {
			return p, errors.New("--to needs --from")
		}
		from, err := jobs.ParseDate(f.from)
		if err != nil {
			return p, err
		}
		to := from
		if f.to != "" {
			if to, err = jobs.ParseDate(f.to); err != nil {
				return p, err
			}
		}
		p.Window = jobs.Window{From: from, To: to}
	case f.yesterday:
		p.Window = jobs.Yesterday(now)
	case f.previousMonth:
		p.Window = jobs.PreviousMonth(now)
		p.Replace = true
	case f.lastSet || needsWindow:
		if f.last < 1 {
			return p, errors.New("--last must be positive")
		}
		p.Window = jobs.LastDays(now, f.last)
	}

	if p.Window.IsZero() {
		if p.Replace {
			return p, errors.New("--replace needs a window")
		}
		return p, nil
	}
	return p, p.Window.Validate()
}
