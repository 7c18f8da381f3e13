// Package blackboard implements asynchronous hint posting and pattern
// reads over the memory store's append-only hint log, publishing a
// hint-posted event for subscribers (spec.md §4.3). Grounded on
// internal/events/bus.go for delivery and internal/memory/hints.go for
// persistence.
package blackboard

import (
	"github.com/agentic-qe/kernel/internal/events"
	"github.com/agentic-qe/kernel/internal/memory"
)

// Board posts and reads hints, optionally fanning out a notification event.
type Board struct {
	db  *memory.DB
	bus *events.Bus
}

// New creates a Board backed by db, publishing to bus if non-nil.
func New(db *memory.DB, bus *events.Bus) *Board {
	return &Board{db: db, bus: bus}
}

// Post appends a hint and publishes a hint-posted notification.
func (b *Board) Post(hint *memory.Hint) error {
	if err := b.db.PostHint(hint); err != nil {
		return err
	}
	if b.bus != nil {
		b.bus.Publish(events.NewEvent(events.EventHintPosted, "blackboard", "all", events.PriorityLow, map[string]interface{}{
			"key": hint.Key,
		}))
	}
	return nil
}

// Read scans hints by glob key pattern, newest-first within a key. No
// ordering guarantee holds across distinct keys (spec.md §4.3).
func (b *Board) Read(pattern string) ([]*memory.Hint, error) {
	return b.db.ReadHints(pattern)
}
