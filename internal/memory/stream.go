package memory

import (
	"fmt"
)

// RecordEvent inserts an immutable event row, defaulting TTL to
// DefaultEventTTL (spec.md §3).
func (d *DB) RecordEvent(e *Event) error {
	if e.Timestamp == 0 {
		e.Timestamp = nowMS()
	}
	if e.TTL == 0 {
		e.TTL = DefaultEventTTL.Milliseconds()
	}
	if e.ExpiresAt == 0 {
		e.ExpiresAt = e.Timestamp + e.TTL
	}

	_, err := d.conn.Exec(`
		INSERT INTO events (id, type, payload, timestamp, source, ttl, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Payload, e.Timestamp, e.Source, e.TTL, e.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// QueryEvents returns events matching type and/or source (either may be
// empty to mean "any"), newest-first, excluding expired rows.
func (d *DB) QueryEvents(eventType, source string, limit int) ([]*Event, error) {
	rows, err := d.conn.Query(`
		SELECT id, type, payload, timestamp, source, ttl, expires_at
		FROM events
		WHERE (? = '' OR type = ?) AND (? = '' OR source = ?)
		ORDER BY timestamp DESC
		LIMIT ?`, eventType, eventType, source, source, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Type, &e.Payload, &e.Timestamp, &e.Source, &e.TTL, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if isExpired(e.ExpiresAt) {
			continue
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
