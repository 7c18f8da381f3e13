// Package ooda manages four-phase Observe/Orient/Decide/Act cycle records
// (spec.md §4.3). Grounded on internal/memory/ooda_rows.go's CRUD shape,
// wrapped with the fixed phase progression and completion rule.
package ooda

import (
	"github.com/agentic-qe/kernel/internal/kerrors"
	"github.com/agentic-qe/kernel/internal/memory"
)

// Manager advances and completes OODA cycles.
type Manager struct {
	db *memory.DB
}

// New creates a Manager backed by db.
func New(db *memory.DB) *Manager {
	return &Manager{db: db}
}

// Start creates a new cycle in the observe phase.
func (m *Manager) Start(id string) (*memory.OODACycle, error) {
	c := &memory.OODACycle{ID: id, Phase: memory.PhaseObserve}
	if err := m.db.CreateOODACycle(c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdatePhase writes data into the current phase's field (observations,
// orientation or decision), then advances the cycle to phase. phase must be
// the next phase in the fixed observe -> orient -> decide -> act progression.
func (m *Manager) UpdatePhase(id string, phase memory.OODAPhase, data string) (*memory.OODACycle, error) {
	current, err := m.db.GetOODACycle(id)
	if err != nil {
		return nil, err
	}
	next, ok := nextPhase[current.Phase]
	if !ok || next != phase {
		return nil, kerrors.Conflict("ooda.updatePhase", "cycle %q cannot move from %s to %s", id, current.Phase, phase)
	}
	return m.db.AdvanceOODAPhase(id, data)
}

var nextPhase = map[memory.OODAPhase]memory.OODAPhase{
	memory.PhaseObserve: memory.PhaseOrient,
	memory.PhaseOrient:  memory.PhaseDecide,
	memory.PhaseDecide:  memory.PhaseAct,
}

// Complete records the act phase's outcome and marks the cycle terminal.
func (m *Manager) Complete(id, action, result string) error {
	return m.db.CompleteOODACycle(id, action, result)
}

// Get fetches a cycle by id.
func (m *Manager) Get(id string) (*memory.OODACycle, error) {
	return m.db.GetOODACycle(id)
}

// Active returns every incomplete cycle, oldest first.
func (m *Manager) Active() ([]*memory.OODACycle, error) {
	return m.db.ActiveOODACycles()
}
