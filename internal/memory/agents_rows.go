package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agentic-qe/kernel/internal/kerrors"
)

// RegisterAgent inserts or replaces an agent_registry row.
func (d *DB) RegisterAgent(a *AgentRegistration) error {
	now := nowMS()
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = AgentActive
	}
	if a.Performance == "" {
		a.Performance = "{}"
	}

	capsJSON, err := json.Marshal(a.Capabilities)
	if err != nil {
		return fmt.Errorf("encode capabilities: %w", err)
	}

	_, err = d.conn.Exec(`
		INSERT INTO agent_registry (id, type, capabilities, status, performance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			capabilities = excluded.capabilities,
			status = excluded.status,
			performance = excluded.performance,
			updated_at = excluded.updated_at`,
		a.ID, a.Type, string(capsJSON), a.Status, a.Performance, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("register agent: %w", err)
	}
	return nil
}

func scanAgentRegistration(row interface {
	Scan(dest ...interface{}) error
}) (*AgentRegistration, error) {
	var a AgentRegistration
	var capsJSON string
	err := row.Scan(&a.ID, &a.Type, &capsJSON, &a.Status, &a.Performance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(capsJSON), &a.Capabilities); err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}
	return &a, nil
}

const agentRegistryColumns = `id, type, capabilities, status, performance, created_at, updated_at`

// GetAgent fetches an agent_registry row by id.
func (d *DB) GetAgent(id string) (*AgentRegistration, error) {
	row := d.conn.QueryRow("SELECT "+agentRegistryColumns+" FROM agent_registry WHERE id = ?", id)
	a, err := scanAgentRegistration(row)
	if err == sql.ErrNoRows {
		return nil, kerrors.NotFound("memory.getAgent", "agent %q not registered", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// SetAgentStatus updates an agent's lifecycle status.
func (d *DB) SetAgentStatus(id string, status AgentStatus) error {
	res, err := d.conn.Exec("UPDATE agent_registry SET status = ?, updated_at = ? WHERE id = ?", status, nowMS(), id)
	if err != nil {
		return fmt.Errorf("set agent status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return kerrors.NotFound("memory.setAgentStatus", "agent %q not registered", id)
	}
	return nil
}

// UpdateAgentPerformance overwrites an agent's caller-defined performance blob.
func (d *DB) UpdateAgentPerformance(id, performance string) error {
	res, err := d.conn.Exec("UPDATE agent_registry SET performance = ?, updated_at = ? WHERE id = ?", performance, nowMS(), id)
	if err != nil {
		return fmt.Errorf("update agent performance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return kerrors.NotFound("memory.updateAgentPerformance", "agent %q not registered", id)
	}
	return nil
}

// AgentsByStatus returns registered agents with the given status.
func (d *DB) AgentsByStatus(status AgentStatus) ([]*AgentRegistration, error) {
	rows, err := d.conn.Query("SELECT "+agentRegistryColumns+" FROM agent_registry WHERE status = ? ORDER BY updated_at DESC", status)
	if err != nil {
		return nil, fmt.Errorf("query agents by status: %w", err)
	}
	defer rows.Close()

	var out []*AgentRegistration
	for rows.Next() {
		a, err := scanAgentRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent registration: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
