package memory

import (
	"database/sql"
	"fmt"

	"github.com/agentic-qe/kernel/internal/kerrors"
)

// CreateOODACycle inserts a new cycle starting in the observe phase.
func (d *DB) CreateOODACycle(c *OODACycle) error {
	if c.Timestamp == 0 {
		c.Timestamp = nowMS()
	}
	if c.Phase == "" {
		c.Phase = PhaseObserve
	}
	_, err := d.conn.Exec(`
		INSERT INTO ooda_cycles (id, phase, observations, orientation, decision, action, timestamp, completed, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Phase, nullString(c.Observations), nullString(c.Orientation), nullString(c.Decision),
		nullString(c.Action), c.Timestamp, c.Completed, nullString(c.Result),
	)
	if err != nil {
		return fmt.Errorf("create ooda cycle: %w", err)
	}
	return nil
}

func scanOODACycle(row interface {
	Scan(dest ...interface{}) error
}) (*OODACycle, error) {
	var c OODACycle
	var observations, orientation, decision, action, result sql.NullString
	err := row.Scan(&c.ID, &c.Phase, &observations, &orientation, &decision, &action, &c.Timestamp, &c.Completed, &result)
	if err != nil {
		return nil, err
	}
	c.Observations = observations.String
	c.Orientation = orientation.String
	c.Decision = decision.String
	c.Action = action.String
	c.Result = result.String
	return &c, nil
}

const oodaColumns = `id, phase, observations, orientation, decision, action, timestamp, completed, result`

// GetOODACycle fetches a cycle by id.
func (d *DB) GetOODACycle(id string) (*OODACycle, error) {
	row := d.conn.QueryRow("SELECT "+oodaColumns+" FROM ooda_cycles WHERE id = ?", id)
	c, err := scanOODACycle(row)
	if err == sql.ErrNoRows {
		return nil, kerrors.NotFound("memory.getOODACycle", "ooda cycle %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get ooda cycle: %w", err)
	}
	return c, nil
}

// oodaPhaseOrder enforces the fixed observe -> orient -> decide -> act
// progression (spec.md §4.2).
var oodaPhaseOrder = map[OODAPhase]OODAPhase{
	PhaseObserve: PhaseOrient,
	PhaseOrient:  PhaseDecide,
	PhaseDecide:  PhaseAct,
}

// AdvanceOODAPhase moves a cycle to the next phase, recording the
// phase-specific payload (observations/orientation/decision/action).
func (d *DB) AdvanceOODAPhase(id string, payload string) (*OODACycle, error) {
	c, err := d.GetOODACycle(id)
	if err != nil {
		return nil, err
	}
	if c.Completed {
		return nil, kerrors.Conflict("memory.advanceOODAPhase", "ooda cycle %q already completed", id)
	}

	next, ok := oodaPhaseOrder[c.Phase]
	if !ok {
		return nil, kerrors.Conflict("memory.advanceOODAPhase", "ooda cycle %q has no phase after %s", id, c.Phase)
	}

	column := map[OODAPhase]string{
		PhaseObserve: "observations",
		PhaseOrient:  "orientation",
		PhaseDecide:  "decision",
		PhaseAct:     "action",
	}[c.Phase]

	query := fmt.Sprintf("UPDATE ooda_cycles SET phase = ?, %s = ? WHERE id = ?", column)
	if _, err := d.conn.Exec(query, next, payload, id); err != nil {
		return nil, fmt.Errorf("advance ooda phase: %w", err)
	}

	return d.GetOODACycle(id)
}

// CompleteOODACycle records the act phase's outcome and marks the cycle done.
func (d *DB) CompleteOODACycle(id, action, result string) error {
	c, err := d.GetOODACycle(id)
	if err != nil {
		return err
	}
	if c.Phase != PhaseAct {
		return kerrors.Conflict("memory.completeOODACycle", "ooda cycle %q is not in the act phase (%s)", id, c.Phase)
	}
	_, err = d.conn.Exec(`
		UPDATE ooda_cycles SET action = ?, result = ?, completed = 1 WHERE id = ?`,
		action, result, id,
	)
	if err != nil {
		return fmt.Errorf("complete ooda cycle: %w", err)
	}
	return nil
}

// ActiveOODACycles returns incomplete cycles, oldest first.
func (d *DB) ActiveOODACycles() ([]*OODACycle, error) {
	rows, err := d.conn.Query("SELECT " + oodaColumns + " FROM ooda_cycles WHERE completed = 0 ORDER BY timestamp ASC")
	if err != nil {
		return nil, fmt.Errorf("query active ooda cycles: %w", err)
	}
	defer rows.Close()

	var out []*OODACycle
	for rows.Next() {
		c, err := scanOODACycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ooda cycle: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
