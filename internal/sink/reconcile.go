package sink

import (
	"context"
	"fmt"
	"strings"
)

// Reconcile deletes rows that share their full natural key with another row,
// keeping exactly one survivor chosen by t.Survivor. NULL key values compare
// equal. Running it again on a reconciled table removes nothing.
func (s *Store) Reconcile(ctx context.Context, t Table) (int64, error) {
	order := "id ASC"
	if t.Survivor == SurvivorMostRecent {
		order = "updated_at DESC, id DESC"
	}

	query := fmt.Sprintf(`DELETE FROM %[1]s WHERE id IN (
	SELECT id FROM (
		SELECT id, ROW_NUMBER() OVER (PARTITION BY %[2]s ORDER BY %[3]s) AS rn
		FROM %[1]s
	) ranked
	WHERE rn > 1
)`, t.Name, strings.Join(t.KeyColumns(), ", "), order)

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("reconcile %s: %w", t.Name, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	s.logger.Info(ctx, "duplicates removed", "table", t.Name, "removed", removed, "survivor", t.Survivor.String())
	return removed, nil
}
