package learning

import (
	"github.com/agentic-qe/kernel/internal/memory"
)

// Manager is the learning-domain facade over the memory store's
// Q-value/experience tables, grounded on internal/memory/learning.go's
// SQLiteLearningDB wrapper shape (episodes/knowledge lookups generalized to
// Q-values and numeric-reward experiences).
type Manager struct {
	db *memory.DB
}

// New creates a Manager backed by db.
func New(db *memory.DB) *Manager {
	return &Manager{db: db}
}

// RecordExperience appends one (state, action, reward, next_state) row.
func (m *Manager) RecordExperience(e *memory.Experience) error {
	return m.db.LogExperience(e)
}

// RecentExperiences returns the agent's N newest experiences.
func (m *Manager) RecentExperiences(agentID string, limit int) ([]*memory.Experience, error) {
	return m.db.RecentExperiences(agentID, limit)
}

// ExperiencesByTaskType returns experiences across agents for a task type
// (used as the domain key for transfer search).
func (m *Manager) ExperiencesByTaskType(taskType string, limit int) ([]*memory.Experience, error) {
	return m.db.ExperiencesByTaskType(taskType, limit)
}

// HighRewardExperiences returns experiences with reward >= minReward.
func (m *Manager) HighRewardExperiences(minReward float64, limit int) ([]*memory.Experience, error) {
	return m.db.HighRewardExperiences(minReward, limit)
}

// UpsertQValue blindly overwrites a Q-table cell and increments its
// update count.
func (m *Manager) UpsertQValue(agentID, stateKey, actionKey string, value float64) error {
	return m.db.UpsertQValue(agentID, stateKey, actionKey, value)
}

// GetBestAction returns the highest-q_value row for (agent, state).
func (m *Manager) GetBestAction(agentID, stateKey string) (*memory.QValue, bool, error) {
	return m.db.GetBestAction(agentID, stateKey)
}

// QValuesForState returns every action tried for (agent, state).
func (m *Manager) QValuesForState(agentID, stateKey string) ([]*memory.QValue, error) {
	return m.db.QValuesForState(agentID, stateKey)
}

// Transfer returns a TransferManager sharing this Manager's db handle.
func (m *Manager) Transfer() *TransferManager {
	return NewTransferManager(m.db)
}
