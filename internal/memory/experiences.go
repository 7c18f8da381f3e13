package memory

import (
	"database/sql"
	"fmt"
)

// LogExperience appends an immutable (state, action, reward, next_state)
// row to learning_experiences.
func (d *DB) LogExperience(e *Experience) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = nowMS()
	}
	result, err := d.conn.Exec(`
		INSERT INTO learning_experiences (agent_id, task_id, task_type, state, action, reward, next_state, episode_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AgentID, nullString(e.TaskID), e.TaskType, e.State, e.Action, e.Reward, e.NextState, nullString(e.EpisodeID), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("log experience: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get experience id: %w", err)
	}
	e.ID = id
	return nil
}

func scanExperience(row interface {
	Scan(dest ...interface{}) error
}) (*Experience, error) {
	var e Experience
	var taskID, episodeID sql.NullString
	err := row.Scan(&e.ID, &e.AgentID, &taskID, &e.TaskType, &e.State, &e.Action, &e.Reward, &e.NextState, &episodeID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.TaskID = taskID.String
	e.EpisodeID = episodeID.String
	return &e, nil
}

const experienceColumns = `id, agent_id, task_id, task_type, state, action, reward, next_state, episode_id, created_at`

// RecentExperiences returns the most recent experiences for an agent.
func (d *DB) RecentExperiences(agentID string, limit int) ([]*Experience, error) {
	rows, err := d.conn.Query(`
		SELECT `+experienceColumns+`
		FROM learning_experiences
		WHERE agent_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent experiences: %w", err)
	}
	defer rows.Close()
	return scanExperienceRows(rows)
}

// ExperiencesByTaskType returns experiences across all agents for a task
// type, used by cross-domain transfer search.
func (d *DB) ExperiencesByTaskType(taskType string, limit int) ([]*Experience, error) {
	rows, err := d.conn.Query(`
		SELECT `+experienceColumns+`
		FROM learning_experiences
		WHERE task_type = ?
		ORDER BY created_at DESC
		LIMIT ?`, taskType, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query experiences by task type: %w", err)
	}
	defer rows.Close()
	return scanExperienceRows(rows)
}

// HighRewardExperiences returns experiences with reward >= minReward,
// highest-reward first, for fine-tuning's iterative reward blending.
func (d *DB) HighRewardExperiences(minReward float64, limit int) ([]*Experience, error) {
	rows, err := d.conn.Query(`
		SELECT `+experienceColumns+`
		FROM learning_experiences
		WHERE reward >= ?
		ORDER BY reward DESC
		LIMIT ?`, minReward, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query high reward experiences: %w", err)
	}
	defer rows.Close()
	return scanExperienceRows(rows)
}

func scanExperienceRows(rows *sql.Rows) ([]*Experience, error) {
	var out []*Experience
	for rows.Next() {
		e, err := scanExperience(rows)
		if err != nil {
			return nil, fmt.Errorf("scan experience: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
