package memory

import (
	"database/sql"
	"fmt"

	"github.com/agentic-qe/kernel/internal/kerrors"
)

// StorePattern inserts or replaces a learned pattern row, keyed by its id
// (pattern text is also unique, so a new id with an existing pattern text
// fails with a constraint error). Defaults TTL to DefaultPatternTTL (spec.md §3) and
// invalidates the pattern cache entries for this pattern's agent_id.
func (d *DB) StorePattern(p *Pattern) error {
	if p.ExpiresAt == 0 {
		p.ExpiresAt = nowMS() + DefaultPatternTTL.Milliseconds()
	}

	_, err := d.conn.Exec(`
		INSERT INTO patterns (id, pattern, confidence, usage_count, expires_at, agent_id, domain, success_rate, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pattern = excluded.pattern,
			confidence = excluded.confidence,
			usage_count = excluded.usage_count,
			expires_at = excluded.expires_at,
			agent_id = excluded.agent_id,
			domain = excluded.domain,
			success_rate = excluded.success_rate,
			metadata = excluded.metadata`,
		p.ID, p.Pattern, p.Confidence, p.UsageCount, p.ExpiresAt,
		nullString(p.AgentID), nullString(p.Domain), p.SuccessRate, nullString(p.Metadata),
	)
	if err != nil {
		return fmt.Errorf("store pattern: %w", err)
	}

	d.patternCache.invalidate(p.AgentID)
	return nil
}

func scanPattern(row interface {
	Scan(dest ...interface{}) error
}) (*Pattern, error) {
	var p Pattern
	var agentID, domain, metadata sql.NullString
	err := row.Scan(&p.ID, &p.Pattern, &p.Confidence, &p.UsageCount, &p.ExpiresAt,
		&agentID, &domain, &p.SuccessRate, &metadata)
	if err != nil {
		return nil, err
	}
	p.AgentID = agentID.String
	p.Domain = domain.String
	p.Metadata = metadata.String
	return &p, nil
}

const patternColumns = `id, pattern, confidence, usage_count, expires_at, agent_id, domain, success_rate, metadata`

// GetPattern fetches a single pattern by id.
func (d *DB) GetPattern(id string) (*Pattern, error) {
	row := d.conn.QueryRow("SELECT "+patternColumns+" FROM patterns WHERE id = ?", id)
	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, kerrors.NotFound("memory.getPattern", "pattern %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get pattern: %w", err)
	}
	if isExpired(p.ExpiresAt) {
		return nil, kerrors.NotFound("memory.getPattern", "pattern %q expired", id)
	}
	return p, nil
}

// IncrementPatternUsage bumps usage_count by one, used when a pattern is
// consulted by the planner or learning subsystem.
func (d *DB) IncrementPatternUsage(id string) error {
	_, err := d.conn.Exec("UPDATE patterns SET usage_count = usage_count + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("increment pattern usage: %w", err)
	}
	return nil
}

// QueryPatternsByAgent returns non-expired patterns for agentID with
// confidence >= minConfidence, most-confident first. Served from the bounded
// LRU pattern cache (spec.md §4.1).
func (d *DB) QueryPatternsByAgent(agentID string, minConfidence float64) ([]*Pattern, error) {
	if cached, ok := d.patternCache.get(agentID, minConfidence); ok {
		return cached, nil
	}

	rows, err := d.conn.Query(`
		SELECT `+patternColumns+`
		FROM patterns
		WHERE agent_id = ? AND confidence >= ?
		ORDER BY confidence DESC`, agentID, minConfidence,
	)
	if err != nil {
		return nil, fmt.Errorf("query patterns by agent: %w", err)
	}
	defer rows.Close()

	var out []*Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if isExpired(p.ExpiresAt) {
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	d.patternCache.put(agentID, minConfidence, out)
	return out, nil
}

// QueryPatternsByDomain returns non-expired patterns for a domain ordered by
// confidence descending, for use by the learning subsystem's cross-domain
// transfer search when no agent scoping applies.
func (d *DB) QueryPatternsByDomain(domain string, limit int) ([]*Pattern, error) {
	rows, err := d.conn.Query(`
		SELECT `+patternColumns+`
		FROM patterns
		WHERE domain = ?
		ORDER BY confidence DESC
		LIMIT ?`, domain, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query patterns by domain: %w", err)
	}
	defer rows.Close()

	var out []*Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if isExpired(p.ExpiresAt) {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePattern removes a pattern row and invalidates the cache for its agent.
func (d *DB) DeletePattern(id string) error {
	p, err := d.GetPattern(id)
	if err != nil {
		return err
	}
	if _, err := d.conn.Exec("DELETE FROM patterns WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete pattern: %w", err)
	}
	d.patternCache.invalidate(p.AgentID)
	return nil
}
