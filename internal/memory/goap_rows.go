package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agentic-qe/kernel/internal/kerrors"
)

// PutGoal inserts or replaces a goap_goals row.
func (d *DB) PutGoal(g *Goal) error {
	condJSON, err := json.Marshal(g.Conditions)
	if err != nil {
		return fmt.Errorf("encode goal conditions: %w", err)
	}

	var priority sql.NullInt64
	if g.Priority != nil {
		priority = sql.NullInt64{Int64: int64(*g.Priority), Valid: true}
	}

	_, err = d.conn.Exec(`
		INSERT INTO goap_goals (id, conditions, cost, priority)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conditions = excluded.conditions,
			cost = excluded.cost,
			priority = excluded.priority`,
		g.ID, string(condJSON), g.Cost, priority,
	)
	if err != nil {
		return fmt.Errorf("put goal: %w", err)
	}
	return nil
}

// GetGoal fetches a goap_goals row by id.
func (d *DB) GetGoal(id string) (*Goal, error) {
	var g Goal
	var condJSON string
	var priority sql.NullInt64
	err := d.conn.QueryRow("SELECT id, conditions, cost, priority FROM goap_goals WHERE id = ?", id).
		Scan(&g.ID, &condJSON, &g.Cost, &priority)
	if err == sql.ErrNoRows {
		return nil, kerrors.NotFound("memory.getGoal", "goal %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	if err := json.Unmarshal([]byte(condJSON), &g.Conditions); err != nil {
		return nil, fmt.Errorf("decode goal conditions: %w", err)
	}
	if priority.Valid {
		p := int(priority.Int64)
		g.Priority = &p
	}
	return &g, nil
}

// Goals returns every registered goal ordered by priority (nulls last), then id.
func (d *DB) Goals() ([]*Goal, error) {
	rows, err := d.conn.Query(`
		SELECT id, conditions, cost, priority FROM goap_goals
		ORDER BY priority IS NULL, priority ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []*Goal
	for rows.Next() {
		var g Goal
		var condJSON string
		var priority sql.NullInt64
		if err := rows.Scan(&g.ID, &condJSON, &g.Cost, &priority); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if err := json.Unmarshal([]byte(condJSON), &g.Conditions); err != nil {
			return nil, fmt.Errorf("decode goal conditions: %w", err)
		}
		if priority.Valid {
			p := int(priority.Int64)
			g.Priority = &p
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

// PutAction inserts or replaces a goap_actions row.
func (d *DB) PutAction(a *Action) error {
	preJSON, err := json.Marshal(a.Preconditions)
	if err != nil {
		return fmt.Errorf("encode action preconditions: %w", err)
	}
	effJSON, err := json.Marshal(a.Effects)
	if err != nil {
		return fmt.Errorf("encode action effects: %w", err)
	}

	_, err = d.conn.Exec(`
		INSERT INTO goap_actions (id, preconditions, effects, cost, agent_type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			preconditions = excluded.preconditions,
			effects = excluded.effects,
			cost = excluded.cost,
			agent_type = excluded.agent_type`,
		a.ID, string(preJSON), string(effJSON), a.Cost, nullString(a.AgentType),
	)
	if err != nil {
		return fmt.Errorf("put action: %w", err)
	}
	return nil
}

// Actions returns every registered action, optionally filtered by agentType
// (empty means any).
func (d *DB) Actions(agentType string) ([]*Action, error) {
	rows, err := d.conn.Query(`
		SELECT id, preconditions, effects, cost, agent_type FROM goap_actions
		WHERE ? = '' OR agent_type = ? OR agent_type IS NULL`, agentType, agentType)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var out []*Action
	for rows.Next() {
		var a Action
		var preJSON, effJSON string
		var at sql.NullString
		if err := rows.Scan(&a.ID, &preJSON, &effJSON, &a.Cost, &at); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if err := json.Unmarshal([]byte(preJSON), &a.Preconditions); err != nil {
			return nil, fmt.Errorf("decode action preconditions: %w", err)
		}
		if err := json.Unmarshal([]byte(effJSON), &a.Effects); err != nil {
			return nil, fmt.Errorf("decode action effects: %w", err)
		}
		a.AgentType = at.String
		out = append(out, &a)
	}
	return out, rows.Err()
}

// PutPlan persists a computed action sequence (spec.md §4.2, GOAP).
func (d *DB) PutPlan(p *Plan) error {
	seqJSON, err := json.Marshal(p.Sequence)
	if err != nil {
		return fmt.Errorf("encode plan sequence: %w", err)
	}
	_, err = d.conn.Exec(`
		INSERT INTO goap_plans (id, goal_id, sequence, total_cost)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			goal_id = excluded.goal_id,
			sequence = excluded.sequence,
			total_cost = excluded.total_cost`,
		p.ID, p.GoalID, string(seqJSON), p.TotalCost,
	)
	if err != nil {
		return fmt.Errorf("put plan: %w", err)
	}
	return nil
}

// GetPlan fetches a plan by id.
func (d *DB) GetPlan(id string) (*Plan, error) {
	var p Plan
	var seqJSON string
	err := d.conn.QueryRow("SELECT id, goal_id, sequence, total_cost FROM goap_plans WHERE id = ?", id).
		Scan(&p.ID, &p.GoalID, &seqJSON, &p.TotalCost)
	if err == sql.ErrNoRows {
		return nil, kerrors.NotFound("memory.getPlan", "plan %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if err := json.Unmarshal([]byte(seqJSON), &p.Sequence); err != nil {
		return nil, fmt.Errorf("decode plan sequence: %w", err)
	}
	return &p, nil
}

// PlansForGoal returns persisted plans for a goal, cheapest first.
func (d *DB) PlansForGoal(goalID string) ([]*Plan, error) {
	rows, err := d.conn.Query(`
		SELECT id, goal_id, sequence, total_cost FROM goap_plans
		WHERE goal_id = ?
		ORDER BY total_cost ASC`, goalID)
	if err != nil {
		return nil, fmt.Errorf("query plans for goal: %w", err)
	}
	defer rows.Close()

	var out []*Plan
	for rows.Next() {
		var p Plan
		var seqJSON string
		if err := rows.Scan(&p.ID, &p.GoalID, &seqJSON, &p.TotalCost); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		if err := json.Unmarshal([]byte(seqJSON), &p.Sequence); err != nil {
			return nil, fmt.Errorf("decode plan sequence: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
