package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/common"
	"github.com/dmitrijs2005/stmtsync/internal/dbx"
	"github.com/google/uuid"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
	now     func() time.Time
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: time.Now}
}

func (r *SQLRepository) Start(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Status = StatusRunning
	run.StartedAt = r.now().UTC()

	query := r.dialect.Rebind(
		`INSERT INTO ingest_runs (id, job, window_from, window_to, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Job, run.WindowFrom, run.WindowTo, string(run.Status), r.dialect.Time(run.StartedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Finish(ctx context.Context, run *Run) error {
	run.FinishedAt = r.now().UTC()

	var runErr any
	if run.Error != "" {
		runErr = run.Error
	}

	query := r.dialect.Rebind(
		`UPDATE ingest_runs
         SET status = ?, items = ?, failed = ?, inserted = ?, updated = ?, removed = ?, error = ?, finished_at = ?
         WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query,
		string(run.Status), run.Items, run.Failed, run.Inserted, run.Updated, run.Removed, runErr,
		r.dialect.Time(run.FinishedAt), run.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

const selectRun = `SELECT id, job, window_from, window_to, status, items, failed, inserted, updated, removed,
       error, started_at, finished_at
  FROM ingest_runs`

func (r *SQLRepository) Get(ctx context.Context, id string) (*Run, error) {
	return r.scanOne(ctx, selectRun+` WHERE id = ?`, id)
}

func (r *SQLRepository) Latest(ctx context.Context, job string) (*Run, error) {
	return r.scanOne(ctx, selectRun+` WHERE job = ? ORDER BY started_at DESC LIMIT 1`, job)
}

func (r *SQLRepository) scanOne(ctx context.Context, query string, args ...any) (*Run, error) {
	var (
		run               Run
		status            string
		runErr            sql.NullString
		started, finished dbx.Timestamp
	)

	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...).Scan(
		&run.ID, &run.Job, &run.WindowFrom, &run.WindowTo, &status,
		&run.Items, &run.Failed, &run.Inserted, &run.Updated, &run.Removed,
		&runErr, &started, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	run.Status = Status(status)
	run.Error = runErr.String
	run.StartedAt = started.Time
	run.FinishedAt = finished.Time
	return &run, nil
}
