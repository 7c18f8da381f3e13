package memory

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/agentic-qe/kernel/internal/kerrors"
)

// StoreEntry upserts a memory_entries row (spec.md §4.1 "store"). If a
// CallerOwner is supplied and the row already exists, write permission is
// checked before overwriting.
func (d *DB) StoreEntry(key, value string, opts StoreOptions) error {
	if opts.Partition == "" {
		return fmt.Errorf("store: partition is required")
	}
	if opts.AccessLevel == "" {
		opts.AccessLevel = AccessPrivate
	}

	rk := resourceKey(opts.Partition, key)

	existing, err := d.getEntry(key, opts.Partition, true)
	if err != nil {
		return err
	}

	if existing != nil && opts.CallerOwner != "" {
		acl, err := d.getACL(rk)
		if err != nil {
			return err
		}
		if !checkPermission(existing, acl, opts.CallerOwner, PermWrite) {
			return kerrors.AccessDenied("memory.store", "agent %q may not write key %q in partition %q", opts.CallerOwner, key, opts.Partition)
		}
	}

	now := nowMS()
	var expiresAt int64
	if opts.TTL > 0 {
		expiresAt = now + opts.TTL.Milliseconds()
	}

	_, err = d.conn.Exec(`
		INSERT INTO memory_entries (key, partition, value, owner, access_level, team_id, swarm_id, created_at, expires_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key, partition) DO UPDATE SET
			value = excluded.value,
			owner = excluded.owner,
			access_level = excluded.access_level,
			team_id = excluded.team_id,
			swarm_id = excluded.swarm_id,
			expires_at = excluded.expires_at,
			metadata = excluded.metadata`,
		key, opts.Partition, value, nullString(opts.Owner), opts.AccessLevel,
		nullString(opts.TeamID), nullString(opts.SwarmID), now, nullInt64(expiresAt), nullString(opts.Metadata),
	)
	if err != nil {
		return fmt.Errorf("store entry: %w", err)
	}

	if err := d.upsertACL(rk, opts.Owner, opts.AccessLevel, opts.TeamID, opts.SwarmID); err != nil {
		return err
	}

	return nil
}

// Retrieve returns the decoded payload for key in partition, or (..., false,
// nil) if absent/expired. If AgentID is supplied read permission is checked.
func (d *DB) Retrieve(key string, opts RetrieveOptions) (string, bool, error) {
	entry, err := d.getEntry(key, opts.Partition, opts.IncludeExpired)
	if err != nil {
		return "", false, err
	}
	if entry == nil {
		return "", false, nil
	}

	if opts.AgentID != "" {
		acl, err := d.getACL(resourceKey(opts.Partition, key))
		if err != nil {
			return "", false, err
		}
		if !checkPermission(entry, acl, opts.AgentID, PermRead) {
			return "", false, kerrors.AccessDenied("memory.retrieve", "agent %q may not read key %q in partition %q", opts.AgentID, key, opts.Partition)
		}
	}

	return entry.Value, true, nil
}

func (d *DB) getEntry(key, partition string, includeExpired bool) (*Entry, error) {
	var e Entry
	var owner, teamID, swarmID, metadata sql.NullString
	var expiresAt sql.NullInt64

	err := d.conn.QueryRow(`
		SELECT key, partition, value, owner, access_level, team_id, swarm_id, created_at, expires_at, metadata
		FROM memory_entries WHERE key = ? AND partition = ?`, key, partition,
	).Scan(&e.Key, &e.Partition, &e.Value, &owner, &e.AccessLevel, &teamID, &swarmID, &e.CreatedAt, &expiresAt, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}

	e.Owner = owner.String
	e.TeamID = teamID.String
	e.SwarmID = swarmID.String
	e.Metadata = metadata.String
	e.ExpiresAt = expiresAt.Int64

	if !includeExpired && isExpired(e.ExpiresAt) {
		return nil, nil
	}
	return &e, nil
}

// Query performs a SQL-LIKE key scan within a partition, filtering results
// by read permission when AgentID is supplied. Results are ordered by
// insertion (created_at).
func (d *DB) Query(pattern string, opts QueryOptions) ([]*Entry, error) {
	likePattern := globToLike(pattern)

	rows, err := d.conn.Query(`
		SELECT key, partition, value, owner, access_level, team_id, swarm_id, created_at, expires_at, metadata
		FROM memory_entries
		WHERE partition = ? AND key LIKE ? ESCAPE '\'
		ORDER BY created_at ASC`, opts.Partition, likePattern,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var owner, teamID, swarmID, metadata sql.NullString
		var expiresAt sql.NullInt64
		if err := rows.Scan(&e.Key, &e.Partition, &e.Value, &owner, &e.AccessLevel, &teamID, &swarmID, &e.CreatedAt, &expiresAt, &metadata); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Owner = owner.String
		e.TeamID = teamID.String
		e.SwarmID = swarmID.String
		e.Metadata = metadata.String
		e.ExpiresAt = expiresAt.Int64

		if !opts.IncludeExpired && isExpired(e.ExpiresAt) {
			continue
		}

		if opts.AgentID != "" {
			acl, err := d.getACL(resourceKey(e.Partition, e.Key))
			if err != nil {
				return nil, err
			}
			if !checkPermission(&e, acl, opts.AgentID, PermRead) {
				continue
			}
		}

		out = append(out, &e)
	}
	return out, rows.Err()
}

// Delete removes key from partition, requiring delete permission when
// agentID is supplied, and removes any ACL row for the resource.
func (d *DB) Delete(key, partition string, agentID string) error {
	if agentID != "" {
		entry, err := d.getEntry(key, partition, true)
		if err != nil {
			return err
		}
		if entry == nil {
			return kerrors.NotFound("memory.delete", "key %q not found in partition %q", key, partition)
		}
		acl, err := d.getACL(resourceKey(partition, key))
		if err != nil {
			return err
		}
		if !checkPermission(entry, acl, agentID, PermDelete) {
			return kerrors.AccessDenied("memory.delete", "agent %q may not delete key %q in partition %q", agentID, key, partition)
		}
	}

	if _, err := d.conn.Exec("DELETE FROM memory_entries WHERE key = ? AND partition = ?", key, partition); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return d.deleteACL(resourceKey(partition, key))
}

// Clear purges every entry in a partition (administrative operation).
func (d *DB) Clear(partition string) error {
	if _, err := d.conn.Exec("DELETE FROM memory_entries WHERE partition = ?", partition); err != nil {
		return fmt.Errorf("clear partition: %w", err)
	}
	return nil
}

func isExpired(expiresAt int64) bool {
	return expiresAt > 0 && expiresAt <= nowMS()
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// globToLike translates a simple '*'-glob into a SQL LIKE pattern, escaping
// existing LIKE metacharacters in the literal portions.
func globToLike(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
