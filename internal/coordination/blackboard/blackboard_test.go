package blackboard

import (
	"path/filepath"
	"testing"

	"github.com/agentic-qe/kernel/internal/events"
	"github.com/agentic-qe/kernel/internal/memory"
)

func TestPostAndReadByPattern(t *testing.T) {
	db, err := memory.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open memory db: %v", err)
	}
	defer db.Close()

	board := New(db, events.NewBus(nil))

	if err := board.Post(&memory.Hint{Key: "swarm/alpha/status", Value: "healthy"}); err != nil {
		t.Fatalf("failed to post hint: %v", err)
	}
	if err := board.Post(&memory.Hint{Key: "swarm/beta/status", Value: "degraded"}); err != nil {
		t.Fatalf("failed to post hint: %v", err)
	}

	hints, err := board.Read("swarm/*/status")
	if err != nil {
		t.Fatalf("failed to read hints: %v", err)
	}
	if len(hints) != 2 {
		t.Fatalf("expected 2 hints, got %d", len(hints))
	}
}
