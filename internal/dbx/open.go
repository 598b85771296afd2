package dbx

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var sqlOpen = sql.Open

// Open connects to dsn with the driver's dialect and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sqlOpen(d.Driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("db open: %w", err)
	}

	if d == SQLite {
		// one writer at a time; also keeps in-memory databases on a single connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("db ping: %w", err)
	}

	return db, d, nil
}
