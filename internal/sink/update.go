package sink

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dmitrijs2005/stmtsync/internal/common"
	"github.com/dmitrijs2005/stmtsync/internal/dbx"
)

// Update sets Values on the row with the given surrogate id.
type Update struct {
	ID     int64
	Values Record
}

// UpdateByID applies updates in batches of threshold, one transaction per
// batch, retrying a failed batch once. When several updates target the same
// id the last one wins.
func (s *Store) UpdateByID(ctx context.Context, t Table, updates []Update, threshold int) (Stats, error) {
	threshold = max(threshold, 1)

	var total Stats
	for start := 0; start < len(updates); start += threshold {
		batch := updates[start:min(start+threshold, len(updates))]

		var err error
		for attempt := 1; attempt <= batchAttempts; attempt++ {
			var st Stats
			st, err = s.updateBatch(ctx, t, batch)
			if err == nil {
				total.Add(st)
				break
			}
			if ctx.Err() != nil {
				break
			}
			s.logger.Warn(ctx, "update batch failed", "table", t.Name, "rows", len(batch), "attempt", attempt, "error", err)
		}
		if err != nil {
			return total, &common.WriteError{Table: t.Name, Rows: len(batch), Err: err}
		}
	}
	return total, nil
}

func (s *Store) updateBatch(ctx context.Context, t Table, batch []Update) (Stats, error) {
	for _, u := range batch {
		for col := range u.Values {
			if !t.Has(col) {
				return Stats{}, fmt.Errorf("%w %q in table %s", common.ErrUnknownColumn, col, t.Name)
			}
		}
	}

	var st Stats
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.dialect.Time(s.now())
		for _, u := range batch {
			cols := slices.Sorted(maps.Keys(u.Values))

			var b strings.Builder
			b.WriteString("UPDATE " + t.Name + " SET ")
			args := make([]any, 0, len(cols)+2)
			for _, c := range cols {
				args = append(args, u.Values[c])
				fmt.Fprintf(&b, "%s = %s, ", c, s.dialect.Placeholder(len(args)))
			}
			args = append(args, now)
			fmt.Fprintf(&b, "updated_at = %s", s.dialect.Placeholder(len(args)))
			args = append(args, u.ID)
			fmt.Fprintf(&b, " WHERE id = %s", s.dialect.Placeholder(len(args)))

			res, err := tx.ExecContext(ctx, b.String(), args...)
			if err != nil {
				return fmt.Errorf("update %s id %d: %w", t.Name, u.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			st.Updated += n
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	st.Records = int64(len(batch))
	st.Batches = 1
	return st, nil
}
