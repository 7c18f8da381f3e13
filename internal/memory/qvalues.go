package memory

import (
	"database/sql"
	"fmt"
)

// UpsertQValue blind-overwrites the Q value for (agentID, stateKey,
// actionKey) and increments its update count (spec.md §6 Q-learning).
func (d *DB) UpsertQValue(agentID, stateKey, actionKey string, value float64) error {
	now := nowMS()
	_, err := d.conn.Exec(`
		INSERT INTO q_values (agent_id, state_key, action_key, q_value, update_count, last_updated)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(agent_id, state_key, action_key) DO UPDATE SET
			q_value = excluded.q_value,
			update_count = q_values.update_count + 1,
			last_updated = excluded.last_updated`,
		agentID, stateKey, actionKey, value, now,
	)
	if err != nil {
		return fmt.Errorf("upsert q value: %w", err)
	}
	return nil
}

// GetQValue fetches a single (agentID, stateKey, actionKey) row, returning
// the zero value and false if absent.
func (d *DB) GetQValue(agentID, stateKey, actionKey string) (*QValue, bool, error) {
	var q QValue
	err := d.conn.QueryRow(`
		SELECT agent_id, state_key, action_key, q_value, update_count, last_updated
		FROM q_values WHERE agent_id = ? AND state_key = ? AND action_key = ?`,
		agentID, stateKey, actionKey,
	).Scan(&q.AgentID, &q.StateKey, &q.ActionKey, &q.QValue, &q.UpdateCount, &q.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get q value: %w", err)
	}
	return &q, true, nil
}

// GetBestAction returns the action_key with the highest q_value for
// (agentID, stateKey), used by the Q-learning policy's greedy step.
func (d *DB) GetBestAction(agentID, stateKey string) (*QValue, bool, error) {
	var q QValue
	err := d.conn.QueryRow(`
		SELECT agent_id, state_key, action_key, q_value, update_count, last_updated
		FROM q_values
		WHERE agent_id = ? AND state_key = ?
		ORDER BY q_value DESC
		LIMIT 1`, agentID, stateKey,
	).Scan(&q.AgentID, &q.StateKey, &q.ActionKey, &q.QValue, &q.UpdateCount, &q.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get best action: %w", err)
	}
	return &q, true, nil
}

// QValuesForState returns every action tried for (agentID, stateKey).
func (d *DB) QValuesForState(agentID, stateKey string) ([]*QValue, error) {
	rows, err := d.conn.Query(`
		SELECT agent_id, state_key, action_key, q_value, update_count, last_updated
		FROM q_values WHERE agent_id = ? AND state_key = ?`, agentID, stateKey,
	)
	if err != nil {
		return nil, fmt.Errorf("query q values for state: %w", err)
	}
	defer rows.Close()

	var out []*QValue
	for rows.Next() {
		var q QValue
		if err := rows.Scan(&q.AgentID, &q.StateKey, &q.ActionKey, &q.QValue, &q.UpdateCount, &q.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan q value: %w", err)
		}
		out = append(out, &q)
	}
	return out, rows.Err()
}
