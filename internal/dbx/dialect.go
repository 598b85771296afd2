package dbx

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect captures what differs between the supported SQL backends.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// Goose is the dialect name understood by goose.SetDialect.
	Goose string
	// MaxParams bounds the bind parameters of a single statement.
	MaxParams int

	numbered   bool
	nullSafeEq string
	textTime   bool
}

var (
	Postgres = Dialect{
		Name:       "postgres",
		Driver:     "pgx",
		Goose:      "pgx",
		MaxParams:  65535,
		numbered:   true,
		nullSafeEq: "IS NOT DISTINCT FROM",
	}

	SQLite = Dialect{
		Name:       "sqlite",
		Driver:     "sqlite",
		Goose:      "sqlite3",
		MaxParams:  32766,
		nullSafeEq: "IS",
		textTime:   true,
	}
)

// DialectFor maps a driver name (or common alias) to its Dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// Placeholder returns the n-th (1-based) bind placeholder.
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Placeholders renders "(p1, p2, ...)" for n parameters starting at start.
func (d Dialect) Placeholders(start, n int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Placeholder(start + i))
	}
	b.WriteByte(')')
	return b.String()
}

// NullSafeEq renders a comparison of col against the n-th parameter that
// treats two NULLs as equal.
func (d Dialect) NullSafeEq(col string, n int) string {
	return col + " " + d.nullSafeEq + " " + d.Placeholder(n)
}

// Rebind rewrites '?' placeholders into the dialect's form. Queries passed here
// must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Time encodes a timestamp argument. SQLite stores timestamps as fixed-width
// UTC text so they order correctly as strings.
func (d Dialect) Time(t time.Time) any {
	if d.textTime {
		return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
	}
	return t.UTC()
}

// Timestamp scans a timestamp column written through Dialect.Time, whichever
// representation the driver hands back.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into Timestamp", src)
}

func (t *Timestamp) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time, t.Valid = parsed.UTC(), true
	return nil
}
