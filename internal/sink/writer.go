package sink

import (
	"context"

	"github.com/dmitrijs2005/stmtsync/internal/common"
	"github.com/dmitrijs2005/stmtsync/internal/scheduler"
)

const batchAttempts = 2

// Stats counts what a Writer (or an update run) did.
type Stats struct {
	Records  int64
	Inserted int64
	Updated  int64
	Batches  int64
}

func (s *Stats) Add(o Stats) {
	s.Records += o.Records
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.Batches += o.Batches
}

// Writer buffers records for one work item and writes them in batches of
// threshold records, each batch in its own transaction. Not safe for
// concurrent use.
type Writer struct {
	store     *Store
	table     Table
	threshold int
	buf       []Record
	stats     Stats
}

// NewWriter returns a Writer for t. A threshold below 1 is treated as 1.
func (s *Store) NewWriter(t Table, threshold int) *Writer {
	return &Writer{store: s, table: t, threshold: max(threshold, 1)}
}

// Write buffers records and writes every full batch. On failure the failed
// batch is discarded from the buffer and a *common.WriteError is returned.
func (w *Writer) Write(ctx context.Context, records ...Record) error {
	w.buf = append(w.buf, records...)

	for len(w.buf) >= w.threshold {
		batch := w.buf[:w.threshold]
		w.buf = w.buf[w.threshold:]
		if err := w.write(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes whatever is still buffered.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	batch := w.buf
	w.buf = nil
	return w.write(ctx, batch)
}

// Buffered returns the number of records waiting for the next batch.
func (w *Writer) Buffered() int { return len(w.buf) }

func (w *Writer) Stats() Stats { return w.stats }

// write tries a batch twice before giving up on it.
func (w *Writer) write(ctx context.Context, batch []Record) error {
	scheduler.Mark(ctx, scheduler.StateWriting, "table", w.table.Name, "rows", len(batch))

	var err error
	for attempt := 1; attempt <= batchAttempts; attempt++ {
		var st Stats
		st, err = w.store.writeBatch(ctx, w.table, batch)
		if err == nil {
			w.stats.Add(st)
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		w.store.logger.Warn(ctx, "batch write failed", "table", w.table.Name, "rows", len(batch), "attempt", attempt, "error", err)
	}
	return &common.WriteError{Table: w.table.Name, Rows: len(batch), Err: err}
}
