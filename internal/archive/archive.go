// Package archive stores the raw API pages an ingestion run received, so a
// run can be audited or replayed without calling the API again.
package archive

import (
	"context"
	"fmt"
	"strings"
)

// Archiver stores one raw page under key.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Put(context.Context, string, []byte) error { return nil }

// Key builds raw/<job>/<run>/<item>/<page>.json. Slashes inside item are
// replaced so an item always maps to one path segment.
func Key(job, runID, item string, page int) string {
	item = strings.NewReplacer("/", "_", " ", "_").Replace(item)
	if item == "" {
		item = "_"
	}
	return fmt.Sprintf("raw/%s/%s/%s/%05d.json", job, runID, item, page)
}
