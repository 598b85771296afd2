// Package app builds the ingestion engine from configuration and runs one
// job at a time, recording each run and reporting its outcome.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/stmtsync/internal/archive"
	"github.com/dmitrijs2005/stmtsync/internal/auth"
	"github.com/dmitrijs2005/stmtsync/internal/buildinfo"
	"github.com/dmitrijs2005/stmtsync/internal/config"
	"github.com/dmitrijs2005/stmtsync/internal/dbx"
	"github.com/dmitrijs2005/stmtsync/internal/fetch"
	"github.com/dmitrijs2005/stmtsync/internal/jobs"
	"github.com/dmitrijs2005/stmtsync/internal/logging"
	"github.com/dmitrijs2005/stmtsync/internal/merchant"
	"github.com/dmitrijs2005/stmtsync/internal/migrations"
	"github.com/dmitrijs2005/stmtsync/internal/notify"
	"github.com/dmitrijs2005/stmtsync/internal/paginate"
	"github.com/dmitrijs2005/stmtsync/internal/runs"
	"github.com/dmitrijs2005/stmtsync/internal/scheduler"
	"github.com/dmitrijs2005/stmtsync/internal/sink"
)

var newS3Archiver = func(ctx context.Context, c archive.S3Config) (archive.Archiver, error) {
	return archive.NewS3Archiver(ctx, c)
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	tokens   *auth.Store
	deps     *jobs.Deps
	runs     runs.Repository
	notifier notify.Notifier
}

// NewApp opens and migrates the sink, then assembles the API client stack.
// No request is sent until Run.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger, err := logging.New(logOut, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, err
	}

	db, dialect, err := dbx.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := migrations.Up(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	var arch archive.Archiver = archive.Nop{}
	if c.S3Bucket != "" {
		arch, err = newS3Archiver(ctx, archive.S3Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("archive init error: %w", err)
		}
	}

	httpClient := &http.Client{}

	tokens := auth.NewStore(&auth.HTTPIdentity{
		TokenURL:    c.TokenURL,
		Username:    c.APIUsername,
		Password:    c.APIPassword,
		ClientAuth:  c.ClientAuthHeader,
		RefreshAuth: c.RefreshAuthHeader,
		Client:      httpClient,
	}, logger)

	client, err := fetch.NewClient(httpClient, tokens, fetch.Options{
		BaseURL:        c.APIBaseURL,
		Timeout:        c.RequestTimeout,
		RetryMax:       c.RetryMax,
		BackoffInitial: c.BackoffInitial,
		BackoffMax:     c.BackoffMax,
		RateLimit:      c.RateLimit,
		RateBurst:      c.RateBurst,
		RefreshSkew:    c.TokenRefreshSkew,
		UserAgent:      "stmtsync/" + buildinfo.Version,
	}, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	deps := &jobs.Deps{
		API:       merchant.NewAPI(client, paginate.New(client, paginate.Options{MaxPages: c.MaxPages}), c.SummaryTimeout),
		Repo:      merchant.NewRepository(db, dialect),
		Store:     sink.NewStore(db, dialect, logger),
		Archive:   arch,
		Logger:    logger,
		Companies: c.CompanyNumbers,
		Batches: jobs.BatchSizes{
			Payments:     c.PaymentsBatchSize,
			Sales:        c.SalesBatchSize,
			Installments: c.InstallmentsBatchSize,
			Receivables:  c.ReceivablesBatchSize,
		},
		Scheduler: scheduler.Options{
			MaxConcurrency: c.MaxConcurrency,
			ItemTimeout:    c.ItemTimeout,
		},
	}

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		tokens:   tokens,
		deps:     deps,
		runs:     runs.NewSQLRepository(db, dialect),
		notifier: notify.NewLogNotifier(logger),
	}, nil
}

func (app *App) Close() error {
	return app.db.Close()
}

// Job returns the job registered under name: payments, sales, installments,
// receivables-monthly or receivables-daily.
func (app *App) Job(name string) (jobs.Job, error) {
	switch name {
	case "payments":
		return &jobs.PaymentsJob{Deps: app.deps}, nil
	case "sales":
		return &jobs.SalesJob{Deps: app.deps}, nil
	case "installments":
		return &jobs.InstallmentsJob{Deps: app.deps}, nil
	case "receivables-monthly":
		return &jobs.ReceivablesJob{Deps: app.deps, Period: merchant.PeriodMonthly}, nil
	case "receivables-daily":
		return &jobs.ReceivablesJob{Deps: app.deps, Period: merchant.PeriodDaily}, nil
	}
	return nil, fmt.Errorf("unknown job %q", name)
}

// initSignalHandler cancels the run on SIGINT, SIGTERM or SIGQUIT. The
// returned func stops listening.
func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// Run logs in, executes job and records the outcome in ingest_runs. Failed
// items make the run partial; the returned error is set only when the job
// could not run at all.
func (app *App) Run(ctx context.Context, job jobs.Job, p jobs.Params) (*jobs.Summary, error) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.initSignalHandler(cancelFunc)()

	app.logger.Info(ctx, "starting job", "job", job.Name(), "window", p.Window.String(), "build", buildinfo.String())

	run := &runs.Run{
		ID:         p.RunID,
		Job:        job.Name(),
		WindowFrom: p.Window.FromDate(),
		WindowTo:   p.Window.ToDate(),
	}
	if err := app.runs.Start(ctx, run); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	p.RunID = run.ID

	sum, err := app.execute(ctx, job, p)

	// the outcome is recorded even after cancellation
	finishCtx := context.WithoutCancel(ctx)
	app.finish(finishCtx, run, sum, err)

	if sum != nil {
		if nerr := app.notifier.Notify(finishCtx, sum); nerr != nil {
			app.logger.Warn(finishCtx, "notify failed", "error", nerr)
		}
	}
	return sum, err
}

func (app *App) execute(ctx context.Context, job jobs.Job, p jobs.Params) (*jobs.Summary, error) {
	if _, err := app.tokens.Login(ctx); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return job.Run(ctx, p)
}

func (app *App) finish(ctx context.Context, run *runs.Run, sum *jobs.Summary, err error) {
	if sum != nil {
		run.Items = sum.Items
		run.Failed = sum.Failed
		run.Inserted = sum.Inserted
		run.Updated = sum.Updated
		run.Removed = sum.Removed
	}

	switch {
	case err != nil:
		run.Status = runs.StatusFailed
		run.Error = err.Error()
	case run.Failed > 0:
		run.Status = runs.StatusPartial
		run.Error = sum.Err().Error()
	default:
		run.Status = runs.StatusSucceeded
	}

	if ferr := app.runs.Finish(ctx, run); ferr != nil {
		app.logger.Error(ctx, "finish run", "run", run.ID, "error", ferr)
	}
}
