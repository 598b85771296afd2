// Package sink persists API records into SQL tables in bounded batches and
// reconciles the duplicates that append-mode ingestion leaves behind.
package sink

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"slices"

	"golang.org/x/crypto/blake2b"
)

// Record is one row keyed by column name. Missing columns are written as NULL.
type Record map[string]any

// Mode selects how a batch reaches the table.
type Mode int

const (
	// ModeAppend inserts every record; duplicates wait for Reconcile.
	ModeAppend Mode = iota
	// ModeUpsert updates rows matching the natural key and inserts the rest.
	ModeUpsert
)

// Survivor picks the row Reconcile keeps among rows sharing a natural key.
type Survivor int

const (
	// SurvivorFirstInserted keeps the smallest id. Suits immutable facts.
	SurvivorFirstInserted Survivor = iota
	// SurvivorMostRecent keeps the latest updated_at, then the largest id.
	// Suits entities whose status changes over time.
	SurvivorMostRecent
)

func (s Survivor) String() string {
	if s == SurvivorMostRecent {
		return "most-recent"
	}
	return "first-inserted"
}

// Table describes a sink table. Every table also carries the bookkeeping
// columns id, ingested_at and updated_at.
type Table struct {
	Name string
	// Columns are written on insert, in this order.
	Columns []string
	// Key is the natural key; empty means all of Columns.
	Key []string
	// Detail columns are filled later through UpdateByID.
	Detail []string

	Mode     Mode
	Survivor Survivor
	// DateColumn enables DeleteWindow.
	DateColumn string
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks that every name is a plain identifier and that the key and
// date columns are among the declared ones.
func (t Table) Validate() error {
	if !identRe.MatchString(t.Name) {
		return fmt.Errorf("table name %q is not an identifier", t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", t.Name)
	}
	for _, c := range append(slices.Clone(t.Columns), t.Detail...) {
		if !identRe.MatchString(c) {
			return fmt.Errorf("table %s: column %q is not an identifier", t.Name, c)
		}
	}
	for _, k := range t.Key {
		if !slices.Contains(t.Columns, k) {
			return fmt.Errorf("table %s: key column %q is not declared", t.Name, k)
		}
	}
	if t.DateColumn != "" && !t.Has(t.DateColumn) {
		return fmt.Errorf("table %s: date column %q is not declared", t.Name, t.DateColumn)
	}
	return nil
}

// KeyColumns returns the natural key.
func (t Table) KeyColumns() []string {
	if len(t.Key) == 0 {
		return t.Columns
	}
	return t.Key
}

// ValueColumns returns the insert columns outside the natural key.
func (t Table) ValueColumns() []string {
	key := t.KeyColumns()
	var out []string
	for _, c := range t.Columns {
		if !slices.Contains(key, c) {
			out = append(out, c)
		}
	}
	return out
}

// Has reports whether col is an insert or detail column.
func (t Table) Has(col string) bool {
	return slices.Contains(t.Columns, col) || slices.Contains(t.Detail, col)
}

// Digest returns a stable hex digest of values, type-tagged so that 1 and "1"
// differ.
func Digest(values ...any) string {
	h, _ := blake2b.New256(nil)
	for _, v := range values {
		fmt.Fprintf(h, "%T:%v\x00", v, v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (r Record) digest(cols []string) string {
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = r[c]
	}
	return Digest(values...)
}
