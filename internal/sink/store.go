package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/common"
	"github.com/dmitrijs2005/stmtsync/internal/dbx"
	"github.com/dmitrijs2005/stmtsync/internal/logging"
)

// DB is satisfied by *sql.DB.
type DB interface {
	dbx.DBTX
	dbx.TxBeginner
}

// Store writes records into one database. It is safe for concurrent use;
// Writers obtained from it are not.
type Store struct {
	db      DB
	dialect dbx.Dialect
	logger  logging.Logger
	now     func() time.Time
}

func NewStore(db DB, dialect dbx.Dialect, logger logging.Logger) *Store {
	return &Store{db: db, dialect: dialect, logger: logger, now: time.Now}
}

// DB exposes the handle for read queries.
func (s *Store) DB() dbx.DBTX { return s.db }

func (s *Store) Dialect() dbx.Dialect { return s.dialect }

// writeBatch applies one batch in its own transaction.
func (s *Store) writeBatch(ctx context.Context, t Table, batch []Record) (Stats, error) {
	for _, r := range batch {
		for col := range r {
			if !t.Has(col) {
				return Stats{}, fmt.Errorf("%w %q in table %s", common.ErrUnknownColumn, col, t.Name)
			}
		}
	}

	var st Stats
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.dialect.Time(s.now())

		rows := batch
		if t.Mode == ModeUpsert {
			var err error
			rows, st.Updated, err = s.updateExisting(ctx, tx, t, collapse(t, batch), now)
			if err != nil {
				return err
			}
		}

		n, err := s.insert(ctx, tx, t, rows, now)
		st.Inserted = n
		return err
	})
	if err != nil {
		return Stats{}, err
	}

	st.Records = int64(len(batch))
	st.Batches = 1
	return st, nil
}

// collapse keeps one record per natural key, the last one given, at the
// position of the first occurrence.
func collapse(t Table, batch []Record) []Record {
	key := t.KeyColumns()
	index := make(map[string]int, len(batch))
	out := make([]Record, 0, len(batch))
	for _, r := range batch {
		d := r.digest(key)
		if i, ok := index[d]; ok {
			out[i] = r
			continue
		}
		index[d] = len(out)
		out = append(out, r)
	}
	return out
}

// updateExisting updates rows that match each record's natural key (NULLs
// compare equal) and returns the records that matched nothing.
func (s *Store) updateExisting(ctx context.Context, tx dbx.DBTX, t Table, batch []Record, now any) ([]Record, int64, error) {
	key := t.KeyColumns()
	values := t.ValueColumns()

	var b strings.Builder
	b.WriteString("UPDATE " + t.Name + " SET ")
	n := 0
	for _, c := range values {
		n++
		fmt.Fprintf(&b, "%s = %s, ", c, s.dialect.Placeholder(n))
	}
	n++
	fmt.Fprintf(&b, "updated_at = %s WHERE ", s.dialect.Placeholder(n))
	for i, c := range key {
		if i > 0 {
			b.WriteString(" AND ")
		}
		n++
		b.WriteString(s.dialect.NullSafeEq(c, n))
	}
	query := b.String()

	var missing []Record
	var updated int64
	for _, r := range batch {
		args := make([]any, 0, n)
		for _, c := range values {
			args = append(args, r[c])
		}
		args = append(args, now)
		for _, c := range key {
			args = append(args, r[c])
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, 0, fmt.Errorf("update %s: %w", t.Name, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, 0, err
		}
		if affected == 0 {
			missing = append(missing, r)
			continue
		}
		updated++
	}
	return missing, updated, nil
}

// insert writes rows with multi-row INSERT statements, as many rows per
// statement as the dialect's parameter limit allows.
func (s *Store) insert(ctx context.Context, tx dbx.DBTX, t Table, rows []Record, now any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	perRow := len(t.Columns) + 2
	chunk := max(s.dialect.MaxParams/perRow, 1)

	head := "INSERT INTO " + t.Name + " (" + strings.Join(t.Columns, ", ") + ", ingested_at, updated_at) VALUES "

	var inserted int64
	for start := 0; start < len(rows); start += chunk {
		part := rows[start:min(start+chunk, len(rows))]

		var b strings.Builder
		b.WriteString(head)
		args := make([]any, 0, len(part)*perRow)
		for i, r := range part {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.dialect.Placeholders(len(args)+1, perRow))
			for _, c := range t.Columns {
				args = append(args, r[c])
			}
			args = append(args, now, now)
		}

		if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
			return inserted, fmt.Errorf("insert %s: %w", t.Name, err)
		}
		inserted += int64(len(part))
	}
	return inserted, nil
}

// DeleteWindow removes rows whose date column lies in [from, to]. Jobs use it
// to purge a window before ingesting it again from scratch.
func (s *Store) DeleteWindow(ctx context.Context, t Table, from, to string) (int64, error) {
	if t.DateColumn == "" {
		return 0, fmt.Errorf("table %s has no date column", t.Name)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s >= %s AND %s <= %s",
		t.Name, t.DateColumn, s.dialect.Placeholder(1), t.DateColumn, s.dialect.Placeholder(2))

	res, err := s.db.ExecContext(ctx, query, from, to)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

// DeleteWhere removes rows where column equals value.
func (s *Store) DeleteWhere(ctx context.Context, t Table, column string, value any) (int64, error) {
	if !t.Has(column) {
		return 0, fmt.Errorf("%w %q in table %s", common.ErrUnknownColumn, column, t.Name)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", t.Name, column, s.dialect.Placeholder(1))

	res, err := s.db.ExecContext(ctx, query, value)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
