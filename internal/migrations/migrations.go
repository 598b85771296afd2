// Package migrations embeds the goose schema migrations for every supported
// dialect and applies them at startup.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/dmitrijs2005/stmtsync/internal/dbx"
	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

var (
	gooseUpContext = goose.UpContext

	// goose keeps its base FS and dialect in package state
	mu sync.Mutex
)

// Up applies every pending migration for the given dialect.
func Up(ctx context.Context, db *sql.DB, d dbx.Dialect) error {
	sub, err := fs.Sub(Migrations, d.Name)
	if err != nil {
		return fmt.Errorf("migrations for %s: %w", d.Name, err)
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(d.Goose); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}
