package memory

import (
	"database/sql"
	"fmt"
)

// CleanExpired sweeps every TTL-bearing table and removes rows past their
// expires_at, returning the total number of rows removed. Intended to run
// periodically from a background ticker (spec.md §4.1 retention rules).
func (d *DB) CleanExpired() (int, error) {
	now := nowMS()
	var total int

	err := d.withTx(func(tx *sql.Tx) error {
		tables := []struct {
			name     string
			expiryOK string // extra predicate so "never expires" rows are spared
		}{
			{"memory_entries", "expires_at IS NOT NULL AND expires_at > 0"},
			{"hints", "expires_at IS NOT NULL AND expires_at > 0"},
			{"events", "expires_at > 0"},
			{"patterns", "expires_at > 0"},
			{"consensus_proposals", "expires_at > 0"},
		}
		for _, t := range tables {
			res, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s AND expires_at <= ?", t.name, t.expiryOK), now)
			if err != nil {
				return fmt.Errorf("clean expired %s: %w", t.name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("count cleaned %s: %w", t.name, err)
			}
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
