package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agentic-qe/kernel/internal/kerrors"
)

// CreateSession inserts a new session row.
func (d *DB) CreateSession(s *Session) error {
	if s.CreatedAt == 0 {
		s.CreatedAt = nowMS()
	}
	checkpointsJSON, err := json.Marshal(s.Checkpoints)
	if err != nil {
		return fmt.Errorf("encode checkpoints: %w", err)
	}

	_, err = d.conn.Exec(`
		INSERT INTO sessions (id, mode, state, checkpoints, created_at, last_resumed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Mode, s.State, string(checkpointsJSON), s.CreatedAt, nullInt64(s.LastResumed),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func scanSession(row interface {
	Scan(dest ...interface{}) error
}) (*Session, error) {
	var s Session
	var checkpointsJSON string
	var lastResumed sql.NullInt64
	err := row.Scan(&s.ID, &s.Mode, &s.State, &checkpointsJSON, &s.CreatedAt, &lastResumed)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(checkpointsJSON), &s.Checkpoints); err != nil {
		return nil, fmt.Errorf("decode checkpoints: %w", err)
	}
	s.LastResumed = lastResumed.Int64
	return &s, nil
}

const sessionColumns = `id, mode, state, checkpoints, created_at, last_resumed`

// GetSession fetches a session by id.
func (d *DB) GetSession(id string) (*Session, error) {
	row := d.conn.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, kerrors.NotFound("memory.getSession", "session %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// AppendCheckpoint appends a checkpoint label to a session and records the
// resume timestamp, supporting fork/resume/rewind across restarts.
func (d *DB) AppendCheckpoint(id, checkpoint string) error {
	s, err := d.GetSession(id)
	if err != nil {
		return err
	}
	s.Checkpoints = append(s.Checkpoints, checkpoint)
	s.LastResumed = nowMS()

	checkpointsJSON, err := json.Marshal(s.Checkpoints)
	if err != nil {
		return fmt.Errorf("encode checkpoints: %w", err)
	}

	_, err = d.conn.Exec(`
		UPDATE sessions SET checkpoints = ?, last_resumed = ?
		WHERE id = ?`, string(checkpointsJSON), s.LastResumed, id)
	if err != nil {
		return fmt.Errorf("append checkpoint: %w", err)
	}
	return nil
}

// UpdateSessionState overwrites a session's opaque state blob.
func (d *DB) UpdateSessionState(id, state string) error {
	res, err := d.conn.Exec("UPDATE sessions SET state = ? WHERE id = ?", state, id)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return kerrors.NotFound("memory.updateSessionState", "session %q not found", id)
	}
	return nil
}

// SessionsByMode returns sessions in a given mode (swarm or hive-mind).
func (d *DB) SessionsByMode(mode SessionMode) ([]*Session, error) {
	rows, err := d.conn.Query("SELECT "+sessionColumns+" FROM sessions WHERE mode = ? ORDER BY created_at DESC", mode)
	if err != nil {
		return nil, fmt.Errorf("query sessions by mode: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
