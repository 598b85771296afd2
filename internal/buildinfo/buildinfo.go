// Package buildinfo exposes version metadata injected at link time:
//
//	go build -ldflags "-X github.com/dmitrijs2005/stmtsync/internal/buildinfo.Version=v1.2.0"
package buildinfo

import "fmt"

var (
	Version = "N/A"
	Date    = "N/A"
	Commit  = "N/A"
)

// String renders the build metadata on one line.
func String() string {
	return fmt.Sprintf("version=%s date=%s commit=%s", Version, Date, Commit)
}
