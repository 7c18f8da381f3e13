package consensus

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentic-qe/kernel/internal/events"
	"github.com/agentic-qe/kernel/internal/memory"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	db, err := memory.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, events.NewBus(nil))
}

func TestProposeAndVoteToQuorum(t *testing.T) {
	gate := newTestGate(t)

	p, err := gate.Propose("deploy", "p1", 2)
	if err != nil {
		t.Fatalf("failed to propose: %v", err)
	}

	approved, err := gate.Vote(p.ID, "a2")
	if err != nil {
		t.Fatalf("failed to vote: %v", err)
	}
	if approved {
		t.Fatal("expected second distinct voter not to reach quorum+1 yet")
	}

	approved, err = gate.Vote(p.ID, "a3")
	if err != nil {
		t.Fatalf("failed to vote: %v", err)
	}
	if !approved {
		t.Fatal("expected third distinct voter to reach quorum+1 and approve")
	}

	state, err := gate.GetProposalState(p.ID)
	if err != nil {
		t.Fatalf("failed to get proposal state: %v", err)
	}
	if state.Status != memory.ProposalApproved {
		t.Errorf("expected approved, got %s", state.Status)
	}

	if _, err := gate.Vote(p.ID, "a4"); err == nil {
		t.Fatal("expected vote on terminal proposal to fail")
	}
}

func TestVoteIsIdempotent(t *testing.T) {
	gate := newTestGate(t)

	p, err := gate.Propose("deploy", "p1", 5)
	if err != nil {
		t.Fatalf("failed to propose: %v", err)
	}

	if _, err := gate.Vote(p.ID, "a2"); err != nil {
		t.Fatalf("failed to vote: %v", err)
	}
	approved, err := gate.Vote(p.ID, "a2")
	if err != nil {
		t.Fatalf("failed to re-vote: %v", err)
	}
	if approved {
		t.Fatal("expected duplicate vote to return false")
	}

	state, err := gate.GetProposalState(p.ID)
	if err != nil {
		t.Fatalf("failed to get proposal state: %v", err)
	}
	if len(state.Votes) != 2 {
		t.Errorf("expected 2 distinct votes, got %d", len(state.Votes))
	}
}

func TestRejectRequiresProposerOrAdmin(t *testing.T) {
	gate := newTestGate(t)

	p, err := gate.Propose("deploy", "p1", 2)
	if err != nil {
		t.Fatalf("failed to propose: %v", err)
	}

	if err := gate.Reject(p.ID, "intruder"); err == nil {
		t.Fatal("expected reject by non-proposer to fail")
	}

	if err := gate.Reject(p.ID, "p1"); err != nil {
		t.Fatalf("failed to reject as proposer: %v", err)
	}

	state, err := gate.GetProposalState(p.ID)
	if err != nil {
		t.Fatalf("failed to get proposal state: %v", err)
	}
	if state.Status != memory.ProposalRejected {
		t.Errorf("expected rejected, got %s", state.Status)
	}
}

func TestWaitForConsensusResolvesOnEvent(t *testing.T) {
	gate := newTestGate(t)

	p, err := gate.Propose("deploy", "p1", 1)
	if err != nil {
		t.Fatalf("failed to propose: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		if _, err := gate.Vote(p.ID, "a2"); err != nil {
			t.Errorf("failed to vote in goroutine: %v", err)
		}
	}()

	resolved, err := gate.WaitForConsensus(context.Background(), p.ID, time.Second)
	if err != nil {
		t.Fatalf("failed to wait for consensus: %v", err)
	}
	if resolved.Status != memory.ProposalApproved {
		t.Errorf("expected approved, got %s", resolved.Status)
	}
}

func TestWaitForConsensusTimesOut(t *testing.T) {
	gate := newTestGate(t)

	p, err := gate.Propose("deploy", "p1", 5)
	if err != nil {
		t.Fatalf("failed to propose: %v", err)
	}

	_, err = gate.WaitForConsensus(context.Background(), p.ID, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
