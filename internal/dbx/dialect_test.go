package dbx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"pgx", "postgres", "PostgreSQL"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, Postgres, d)
	}
	for _, name := range []string{"sqlite", "sqlite3"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, SQLite, d)
	}
	_, err := DialectFor("mssql")
	require.Error(t, err)
}

func TestDialect_Placeholders(t *testing.T) {
	assert.Equal(t, "$3", Postgres.Placeholder(3))
	assert.Equal(t, "?", SQLite.Placeholder(3))

	assert.Equal(t, "($4, $5, $6)", Postgres.Placeholders(4, 3))
	assert.Equal(t, "(?, ?)", SQLite.Placeholders(1, 2))

	assert.Equal(t, "nsu IS NOT DISTINCT FROM $2", Postgres.NullSafeEq("nsu", 2))
	assert.Equal(t, "nsu IS ?", SQLite.NullSafeEq("nsu", 2))
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT id FROM payments WHERE payment_date = ? AND company = ?"
	assert.Equal(t, "SELECT id FROM payments WHERE payment_date = $1 AND company = $2", Postgres.Rebind(q))
	assert.Equal(t, q, SQLite.Rebind(q))
}

func TestDialect_Time(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	ts := time.Date(2026, 3, 1, 9, 0, 0, 5, loc)

	assert.Equal(t, "2026-03-01T12:00:00.000000005Z", SQLite.Time(ts))
	assert.Equal(t, ts.UTC(), Postgres.Time(ts))
}

func TestOpen_SQLite(t *testing.T) {
	db, d, err := Open(context.Background(), "sqlite", "file:open_test?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, SQLite, d)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), "oracle", "x")
	require.Error(t, err)
}

func TestTimestamp_Scan(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 0, 5, time.UTC)

	var ts Timestamp
	require.NoError(t, ts.Scan(SQLite.Time(want)))
	assert.True(t, ts.Valid)
	assert.True(t, want.Equal(ts.Time))

	require.NoError(t, ts.Scan([]byte("2026-03-01T12:00:00Z")))
	assert.Equal(t, 12, ts.Time.Hour())

	require.NoError(t, ts.Scan(want))
	assert.True(t, want.Equal(ts.Time))

	require.NoError(t, ts.Scan(nil))
	assert.False(t, ts.Valid)

	require.Error(t, ts.Scan(42))
}
