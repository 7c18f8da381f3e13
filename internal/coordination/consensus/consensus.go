// Package consensus implements quorum-voting proposals: propose, vote,
// reject, and a race-based waitForConsensus (spec.md §4.3). Grounded on
// internal/memory/review_board.go's deliberation/voting shape, generalized
// from a fixed review panel to an arbitrary agent quorum, and on
// internal/events/bus.go for the event/timeout race used by WaitForConsensus.
package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentic-qe/kernel/internal/events"
	"github.com/agentic-qe/kernel/internal/kerrors"
	"github.com/agentic-qe/kernel/internal/memory"
)

// Gate coordinates proposal lifecycle over the memory store, publishing
// reached/rejected events on the shared bus.
type Gate struct {
	db  *memory.DB
	bus *events.Bus
}

// New creates a Gate backed by db, publishing lifecycle events on bus.
func New(db *memory.DB, bus *events.Bus) *Gate {
	return &Gate{db: db, bus: bus}
}

// Propose creates a pending proposal with the proposer's vote already
// counted (spec.md §4.3).
func (g *Gate) Propose(decision, proposer string, quorum int) (*memory.Proposal, error) {
	p := &memory.Proposal{
		ID:       "proposal:" + uuid.New().String(),
		Decision: decision,
		Proposer: proposer,
		Votes:    []string{proposer},
		Quorum:   quorum,
		Status:   memory.ProposalPending,
	}
	if err := g.db.CreateProposal(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Vote casts agentID's vote for a pending proposal. It is idempotent per
// agent: a repeat vote returns false without altering the vote set. It
// returns true exactly when this call raises the distinct vote count to
// quorum+1 (proposer plus quorum others), at which point the proposal
// becomes approved and a reached event is published.
func (g *Gate) Vote(id, agentID string) (bool, error) {
	before, err := g.db.GetProposal(id)
	if err != nil {
		return false, err
	}
	if before.Status != memory.ProposalPending {
		return false, kerrors.ErrAlreadyResolved
	}
	for _, v := range before.Votes {
		if v == agentID {
			return false, nil
		}
	}

	after, err := g.db.AddVote(id, agentID)
	if err != nil {
		return false, err
	}

	if len(after.Votes) < after.Quorum+1 {
		return false, nil
	}

	if err := g.db.ResolveProposal(id, memory.ProposalApproved); err != nil {
		return false, err
	}

	g.publish(events.EventConsensusReached, id, after.Decision)
	return true, nil
}

// Reject transitions a pending proposal to rejected. Only the proposer or
// the "admin" system agent may do so.
func (g *Gate) Reject(id, agentID string) error {
	p, err := g.db.GetProposal(id)
	if err != nil {
		return err
	}
	if agentID != p.Proposer && agentID != "admin" {
		return kerrors.AccessDenied("consensus.reject", "agent %q may not reject proposal %q", agentID, id)
	}
	if err := g.db.ResolveProposal(id, memory.ProposalRejected); err != nil {
		return err
	}
	g.publish(events.EventConsensusRejected, id, p.Decision)
	return nil
}

// GetProposalState returns the current state of a proposal.
func (g *Gate) GetProposalState(id string) (*memory.Proposal, error) {
	return g.db.GetProposal(id)
}

func (g *Gate) publish(eventType events.EventType, proposalID, decision string) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(events.NewEvent(eventType, "consensus", "all", events.PriorityNormal, map[string]interface{}{
		"proposal_id": proposalID,
		"decision":    decision,
	}))
}

// WaitForConsensus resolves on the first of: the proposal is already
// terminal at entry (returns synchronously), a reached/rejected event whose
// proposal_id is id arrives, or timeout elapses. The event branch and the
// timeout branch race cleanly; whichever fires first wins (spec.md §9,
// "Implement with whichever primitive wins first; do not use a naive
// sleep-then-check pattern").
func (g *Gate) WaitForConsensus(ctx context.Context, id string, timeout time.Duration) (*memory.Proposal, error) {
	p, err := g.db.GetProposal(id)
	if err != nil {
		return nil, err
	}
	if p.Status != memory.ProposalPending {
		return p, nil
	}

	if g.bus == nil {
		return nil, fmt.Errorf("wait for consensus: no event bus configured")
	}

	sub := g.bus.Subscribe("all", []events.EventType{events.EventConsensusReached, events.EventConsensusRejected})
	defer g.bus.Unsubscribe("all", sub)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev := <-sub:
			proposalID, _ := ev.Payload["proposal_id"].(string)
			if proposalID != id {
				continue
			}
			return g.db.GetProposal(id)
		case <-timer.C:
			return nil, kerrors.Transient("consensus.waitForConsensus", nil, "timed out waiting for proposal %q", id)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
