package memory

import (
	"database/sql"
	"fmt"

	"github.com/agentic-qe/kernel/internal/kerrors"
)

// CreateWorkflow inserts a new workflow_state row in pending status.
func (d *DB) CreateWorkflow(w *WorkflowState) error {
	now := nowMS()
	w.CreatedAt, w.UpdatedAt = now, now
	if w.Status == "" {
		w.Status = WorkflowPending
	}
	_, err := d.conn.Exec(`
		INSERT INTO workflow_state (id, step, status, checkpoint, sha, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Step, w.Status, nullString(w.Checkpoint), nullString(w.SHA), w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	return nil
}

// GetWorkflow fetches a workflow_state row by id.
func (d *DB) GetWorkflow(id string) (*WorkflowState, error) {
	var w WorkflowState
	var checkpoint, sha sql.NullString
	err := d.conn.QueryRow(`
		SELECT id, step, status, checkpoint, sha, created_at, updated_at
		FROM workflow_state WHERE id = ?`, id,
	).Scan(&w.ID, &w.Step, &w.Status, &checkpoint, &sha, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, kerrors.NotFound("memory.getWorkflow", "workflow %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	w.Checkpoint = checkpoint.String
	w.SHA = sha.String
	return &w, nil
}

// validWorkflowTransitions enumerates the allowed state machine edges
// (spec.md §4.1 "Memory entries have no states beyond presence + expiry.
// Workflow rows transition pending -> in_progress -> {completed|failed}").
var validWorkflowTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowPending:    {WorkflowInProgress},
	WorkflowInProgress: {WorkflowCompleted, WorkflowFailed},
}

// AdvanceWorkflow transitions a workflow to newStatus, updating its
// checkpoint/sha, and enforcing monotonically increasing updated_at.
func (d *DB) AdvanceWorkflow(id string, newStatus WorkflowStatus, checkpoint, sha string) error {
	w, err := d.GetWorkflow(id)
	if err != nil {
		return err
	}

	if w.Status == WorkflowCompleted || w.Status == WorkflowFailed {
		return kerrors.Conflict("memory.advanceWorkflow", "workflow %q is already terminal (%s)", id, w.Status)
	}

	allowed := false
	for _, next := range validWorkflowTransitions[w.Status] {
		if next == newStatus {
			allowed = true
			break
		}
	}
	if !allowed {
		return kerrors.Conflict("memory.advanceWorkflow", "invalid transition %s -> %s for workflow %q", w.Status, newStatus, id)
	}

	updatedAt := nowMS()
	if updatedAt <= w.UpdatedAt {
		updatedAt = w.UpdatedAt + 1
	}

	_, err = d.conn.Exec(`
		UPDATE workflow_state SET status = ?, checkpoint = ?, sha = ?, updated_at = ?
		WHERE id = ?`, newStatus, nullString(checkpoint), nullString(sha), updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("advance workflow: %w", err)
	}
	return nil
}
