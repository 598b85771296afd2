// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/stmtsync/internal/dbx"
	"github.com/dmitrijs2005/stmtsync/internal/migrations"
	_ "modernc.org/sqlite"
)

var dbSeq atomic.Int64

// OpenSQLite returns a migrated, private in-memory database that is closed
// when the test ends.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.Up(context.Background(), db, dbx.SQLite); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// Count returns the number of rows in table matching the optional where clause.
func Count(t testing.TB, db *sql.DB, table, where string, args ...any) int {
	t.Helper()

	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
