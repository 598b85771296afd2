package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/app"
	"github.com/dmitrijs2005/stmtsync/internal/buildinfo"
	"github.com/dmitrijs2005/stmtsync/internal/config"
	"github.com/dmitrijs2005/stmtsync/internal/jobs"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// seams for tests
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
	runJob       = run
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stmtsync",
		Short: "Incremental ingestion of merchant statements into SQL",
		Long: `stmtsync pulls payments, sales, installments and receivables from the
merchant statement API and stores them without duplicates.

Connection settings come from the config file (-c), the environment
(API_USERNAME_REDE, DATABASE_DSN, ...) and the short flags -a -t -u -m -D -d
-w -r -b -l, which may appear anywhere on the command line.`,
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		// config flags are parsed by the config package
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	}

	root.AddCommand(
		windowCmd("payments", "Ingest consolidated payments day by day and fill their sale detail", true),
		windowCmd("sales", "Ingest sales over the window", true),
		windowCmd("installments", "Fetch missing installments and refresh unsettled ones", false),
		receivablesCmd(),
		versionCmd(),
	)
	return root
}

func windowCmd(name, short string, needsWindow bool) *cobra.Command {
	var f windowFlags
	cmd := &cobra.Command{
		Use:                name,
		Short:              short,
		Args:               cobra.NoArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.lastSet = cmd.Flags().Changed("last")
			p, err := f.params(now(), needsWindow)
			if err != nil {
				return err
			}
			return runJob(cmd, name, p)
		},
	}
	f.register(cmd)
	return cmd
}

func receivablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receivables",
		Short: "Store receivables summaries per company",
	}

	for _, period := range []string{"monthly", "daily"} {
		var from string
		sub := &cobra.Command{
			Use:                period,
			Short:              "Store " + period + " receivables counted from --from (default today)",
			Args:               cobra.NoArgs,
			FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
			RunE: func(cmd *cobra.Command, _ []string) error {
				var p jobs.Params
				if from != "" {
					t, err := jobs.ParseDate(from)
					if err != nil {
						return err
					}
					p.Window = jobs.Single(t)
				}
				return runJob(cmd, "receivables-"+period, p)
			},
		}
		sub.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD or YYYYMMDD)")
		cmd.AddCommand(sub)
	}
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}

func run(cmd *cobra.Command, name string, p jobs.Params) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := promptPassword(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()

	a, err := app.NewApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.Job(name)
	if err != nil {
		return err
	}

	sum, err := a.Run(ctx, job, p)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s run %s: %d items, %d failed, %d inserted, %d updated, %d removed in %s\n",
		sum.Job, sum.RunID, sum.Items, sum.Failed, sum.Inserted, sum.Updated, sum.Removed, sum.Elapsed.Round(time.Millisecond))
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", sum.Failed, sum.Items)
	}
	return nil
}

// promptPassword asks for the API password when none is configured and
// stdin is a terminal.
func promptPassword(cfg *config.Config) error {
	if cfg.APIPassword != "" {
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return fmt.Errorf("api password is required (%s)", config.EnvAPIPassword)
	}

	fmt.Fprint(os.Stderr, "API password: ")
	pw, err := readPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	cfg.APIPassword = string(pw)
	return nil
}
