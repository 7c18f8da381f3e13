package memory

import (
	"database/sql"
	"fmt"
)

// PostHint appends a row to the blackboard log (spec.md §4.3).
func (d *DB) PostHint(hint *Hint) error {
	if hint.CreatedAt == 0 {
		hint.CreatedAt = nowMS()
	}
	result, err := d.conn.Exec(`
		INSERT INTO hints (key, value, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		hint.Key, hint.Value, hint.CreatedAt, nullInt64(hint.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("post hint: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get hint id: %w", err)
	}
	hint.ID = id
	return nil
}

// ReadHints scans hints by glob key pattern, newest-first, filtered by expiry.
func (d *DB) ReadHints(pattern string) ([]*Hint, error) {
	rows, err := d.conn.Query(`
		SELECT id, key, value, created_at, expires_at
		FROM hints
		WHERE key LIKE ? ESCAPE '\'
		ORDER BY created_at DESC`, globToLike(pattern),
	)
	if err != nil {
		return nil, fmt.Errorf("read hints: %w", err)
	}
	defer rows.Close()

	var out []*Hint
	for rows.Next() {
		var h Hint
		var expiresAt sql.NullInt64
		if err := rows.Scan(&h.ID, &h.Key, &h.Value, &h.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan hint: %w", err)
		}
		h.ExpiresAt = expiresAt.Int64
		if isExpired(h.ExpiresAt) {
			continue
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}
