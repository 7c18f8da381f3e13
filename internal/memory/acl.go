package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// checkPermission implements the monotone access lattice of spec.md §4.1:
// an agent is permitted if ANY of the positive conditions hold, UNLESS the
// agent is explicitly blocked — blocks always override grants.
func checkPermission(entry *Entry, acl *ACLRow, agentID string, perm Permission) bool {
	if agentID == "" {
		// No caller identity supplied: callers that skip the agentID option
		// are treated as trusted internal callers (spec.md §4.1 only
		// specifies behaviour "if agentId is supplied").
		return true
	}

	if acl != nil {
		for _, blocked := range acl.BlockedAgents {
			if blocked == agentID {
				return false
			}
		}
	}

	if entry.Owner != "" && entry.Owner == agentID {
		return true
	}

	switch entry.AccessLevel {
	case AccessPublic:
		return true
	case AccessSystem:
		return isSystemAgent(agentID)
	case AccessSwarm:
		if entry.SwarmID != "" && acl != nil && acl.SwarmID == entry.SwarmID {
			return true
		}
	case AccessTeam:
		if entry.TeamID != "" && acl != nil && acl.TeamID == entry.TeamID {
			return true
		}
	}

	if acl != nil {
		if perms, ok := acl.GrantedPermissions[agentID]; ok {
			for _, p := range perms {
				if p == perm {
					return true
				}
			}
		}
	}

	return false
}

// isSystemAgent reports whether agentID is recognized as a system-level
// agent. The spec leaves the mechanism unspecified beyond "is a system
// agent"; the kernel uses a fixed identity, matching the single built-in
// "admin" actor used for proposal rejection (spec.md §4.3).
func isSystemAgent(agentID string) bool {
	return agentID == "system" || agentID == "admin"
}

func (d *DB) getACL(resourceID string) (*ACLRow, error) {
	var row ACLRow
	var teamID, swarmID sql.NullString
	var grantedJSON, blockedJSON string

	err := d.conn.QueryRow(`
		SELECT resource_id, owner, access_level, team_id, swarm_id,
		       granted_permissions, blocked_agents, created_at, updated_at
		FROM acl WHERE resource_id = ?`, resourceID,
	).Scan(&row.ResourceID, &row.Owner, &row.AccessLevel, &teamID, &swarmID,
		&grantedJSON, &blockedJSON, &row.CreatedAt, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get acl row: %w", err)
	}

	row.TeamID = teamID.String
	row.SwarmID = swarmID.String

	granted := map[string][]Permission{}
	if grantedJSON != "" {
		if err := json.Unmarshal([]byte(grantedJSON), &granted); err != nil {
			return nil, fmt.Errorf("decode granted_permissions: %w", err)
		}
	}
	row.GrantedPermissions = granted

	var blocked []string
	if blockedJSON != "" {
		if err := json.Unmarshal([]byte(blockedJSON), &blocked); err != nil {
			return nil, fmt.Errorf("decode blocked_agents: %w", err)
		}
	}
	row.BlockedAgents = blocked

	return &row, nil
}

// upsertACL writes (or refreshes) the ACL row describing a resource's
// ownership and access level. Grants/blocks are preserved across upserts
// triggered by a plain store() call.
func (d *DB) upsertACL(resourceID, owner string, level AccessLevel, teamID, swarmID string) error {
	existing, err := d.getACL(resourceID)
	if err != nil {
		return err
	}

	granted := map[string][]Permission{}
	blocked := []string{}
	if existing != nil {
		granted = existing.GrantedPermissions
		blocked = existing.BlockedAgents
	}

	grantedJSON, err := json.Marshal(granted)
	if err != nil {
		return fmt.Errorf("encode granted_permissions: %w", err)
	}
	blockedJSON, err := json.Marshal(blocked)
	if err != nil {
		return fmt.Errorf("encode blocked_agents: %w", err)
	}

	now := nowMS()
	_, err = d.conn.Exec(`
		INSERT INTO acl (resource_id, owner, access_level, team_id, swarm_id,
		                  granted_permissions, blocked_agents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(resource_id) DO UPDATE SET
			owner = excluded.owner,
			access_level = excluded.access_level,
			team_id = excluded.team_id,
			swarm_id = excluded.swarm_id,
			updated_at = excluded.updated_at`,
		resourceID, owner, level, nullString(teamID), nullString(swarmID),
		string(grantedJSON), string(blockedJSON), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert acl row: %w", err)
	}
	return nil
}

// Grant adds a permission for agentID on resourceID.
func (d *DB) Grant(resourceID, agentID string, perm Permission) error {
	acl, err := d.getACL(resourceID)
	if err != nil {
		return err
	}
	if acl == nil {
		return fmt.Errorf("grant: resource %q has no acl row", resourceID)
	}

	perms := acl.GrantedPermissions[agentID]
	for _, p := range perms {
		if p == perm {
			return nil
		}
	}
	acl.GrantedPermissions[agentID] = append(perms, perm)

	return d.writeACLPermissions(acl)
}

// Block prevents agentID from accessing resourceID regardless of grants.
func (d *DB) Block(resourceID, agentID string) error {
	acl, err := d.getACL(resourceID)
	if err != nil {
		return err
	}
	if acl == nil {
		return fmt.Errorf("block: resource %q has no acl row", resourceID)
	}
	for _, b := range acl.BlockedAgents {
		if b == agentID {
			return nil
		}
	}
	acl.BlockedAgents = append(acl.BlockedAgents, agentID)
	return d.writeACLPermissions(acl)
}

func (d *DB) writeACLPermissions(acl *ACLRow) error {
	grantedJSON, err := json.Marshal(acl.GrantedPermissions)
	if err != nil {
		return fmt.Errorf("encode granted_permissions: %w", err)
	}
	blockedJSON, err := json.Marshal(acl.BlockedAgents)
	if err != nil {
		return fmt.Errorf("encode blocked_agents: %w", err)
	}
	_, err = d.conn.Exec(`
		UPDATE acl SET granted_permissions = ?, blocked_agents = ?, updated_at = ?
		WHERE resource_id = ?`,
		string(grantedJSON), string(blockedJSON), nowMS(), acl.ResourceID,
	)
	if err != nil {
		return fmt.Errorf("update acl permissions: %w", err)
	}
	return nil
}

func (d *DB) deleteACL(resourceID string) error {
	_, err := d.conn.Exec("DELETE FROM acl WHERE resource_id = ?", resourceID)
	if err != nil {
		return fmt.Errorf("delete acl row: %w", err)
	}
	return nil
}

func resourceKey(partition, key string) string {
	return partition + ":" + key
}
