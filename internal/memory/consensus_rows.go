package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agentic-qe/kernel/internal/kerrors"
)

// CreateProposal inserts a new consensus proposal in pending status, with a
// 7-day default TTL (spec.md §4.2).
func (d *DB) CreateProposal(p *Proposal) error {
	now := nowMS()
	p.CreatedAt = now
	if p.ExpiresAt == 0 {
		p.ExpiresAt = now + DefaultProposalTTL.Milliseconds()
	}
	if p.Status == "" {
		p.Status = ProposalPending
	}
	if p.Version == 0 {
		p.Version = 1
	}

	votesJSON, err := json.Marshal(p.Votes)
	if err != nil {
		return fmt.Errorf("encode votes: %w", err)
	}

	_, err = d.conn.Exec(`
		INSERT INTO consensus_proposals (id, decision, proposer, votes, quorum, status, version, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Decision, p.Proposer, string(votesJSON), p.Quorum, p.Status, p.Version, p.CreatedAt, p.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

func scanProposal(row interface {
	Scan(dest ...interface{}) error
}) (*Proposal, error) {
	var p Proposal
	var votesJSON string
	err := row.Scan(&p.ID, &p.Decision, &p.Proposer, &votesJSON, &p.Quorum, &p.Status, &p.Version, &p.CreatedAt, &p.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(votesJSON), &p.Votes); err != nil {
		return nil, fmt.Errorf("decode votes: %w", err)
	}
	return &p, nil
}

const proposalColumns = `id, decision, proposer, votes, quorum, status, version, created_at, expires_at`

// GetProposal fetches a proposal by id.
func (d *DB) GetProposal(id string) (*Proposal, error) {
	row := d.conn.QueryRow("SELECT "+proposalColumns+" FROM consensus_proposals WHERE id = ?", id)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, kerrors.NotFound("memory.getProposal", "proposal %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

// AddVote appends agentID to a pending proposal's vote list, bumping its
// version (optimistic concurrency, spec.md §4.2).
func (d *DB) AddVote(id, agentID string) (*Proposal, error) {
	p, err := d.GetProposal(id)
	if err != nil {
		return nil, err
	}
	if p.Status != ProposalPending {
		return nil, kerrors.Conflict("memory.addVote", "proposal %q is not pending (%s)", id, p.Status)
	}
	for _, v := range p.Votes {
		if v == agentID {
			return p, nil
		}
	}
	p.Votes = append(p.Votes, agentID)
	p.Version++

	votesJSON, err := json.Marshal(p.Votes)
	if err != nil {
		return nil, fmt.Errorf("encode votes: %w", err)
	}

	res, err := d.conn.Exec(`
		UPDATE consensus_proposals SET votes = ?, version = ?
		WHERE id = ? AND version = ?`, string(votesJSON), p.Version, id, p.Version-1)
	if err != nil {
		return nil, fmt.Errorf("add vote: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, kerrors.Conflict("memory.addVote", "proposal %q changed concurrently", id)
	}

	// Approval-threshold logic lives in internal/coordination/consensus, which
	// calls ResolveProposal once the distinct vote count reaches quorum+1.
	return p, nil
}

// ResolveProposal marks a pending proposal approved or rejected.
func (d *DB) ResolveProposal(id string, status ProposalStatus) error {
	res, err := d.conn.Exec(`
		UPDATE consensus_proposals SET status = ?
		WHERE id = ? AND status = ?`, status, id, ProposalPending)
	if err != nil {
		return fmt.Errorf("resolve proposal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return kerrors.Conflict("memory.resolveProposal", "proposal %q already resolved", id)
	}
	return nil
}

// PendingProposals returns non-expired proposals awaiting quorum.
func (d *DB) PendingProposals() ([]*Proposal, error) {
	rows, err := d.conn.Query("SELECT "+proposalColumns+" FROM consensus_proposals WHERE status = ? ORDER BY created_at ASC", ProposalPending)
	if err != nil {
		return nil, fmt.Errorf("query pending proposals: %w", err)
	}
	defer rows.Close()

	var out []*Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		if isExpired(p.ExpiresAt) {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
