package config

import (
	"flag"
	"io"
	"strings"

	"github.com/dmitrijs2005/stmtsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   statement API base URL
//	-t string   identity endpoint URL
//	-u string   API username
//	-m string   comma separated company numbers
//	-D string   database driver (pgx, sqlite)
//	-d string   database DSN
//	-w int      maximum concurrent work items
//	-r float    outbound requests per second
//	-b string   S3 bucket for raw page archiving
//	-l string   log level
//
// args are filtered with flagx.FilterArgs first, so subcommand flags and
// positional arguments pass through untouched. The API password has no flag
// on purpose: it would end up in the process list.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-t", "-u", "-m", "-D", "-d", "-w", "-r", "-b", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.APIBaseURL, "a", config.APIBaseURL, "statement API base URL")
	fs.StringVar(&config.TokenURL, "t", config.TokenURL, "identity endpoint URL")
	fs.StringVar(&config.APIUsername, "u", config.APIUsername, "API username")
	companies := fs.String("m", strings.Join(config.CompanyNumbers, ","), "company numbers, comma separated")
	fs.StringVar(&config.DatabaseDriver, "D", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.MaxConcurrency, "w", config.MaxConcurrency, "max concurrent work items")
	fs.Float64Var(&config.RateLimit, "r", config.RateLimit, "requests per second")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket for raw pages")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.CompanyNumbers = flagx.SplitList(*companies)
	return nil
}
