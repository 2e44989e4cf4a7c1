// Package hitl queues human-in-the-loop approval requests. File proposals
// and command proposals accumulate independently; decisions are submitted
// as a whole batch, never one at a time.
package hitl

import (
	"sync"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/protocol"
)

// Queue holds pending proposals awaiting a user decision. Safe for
// concurrent use.
type Queue struct {
	mu        sync.Mutex
	proposals []protocol.Proposal
	commands  []protocol.CommandProposal
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// AddProposal queues a file proposal. Re-delivery of a pending id replaces
// the earlier entry in place.
func (q *Queue) AddProposal(p protocol.Proposal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, existing := range q.proposals {
		if existing.ProposalID == p.ProposalID {
			q.proposals[i] = p
			return
		}
	}
	q.proposals = append(q.proposals, p)
}

// AddCommand queues a command proposal, replacing a pending duplicate id.
func (q *Queue) AddCommand(c protocol.CommandProposal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, existing := range q.commands {
		if existing.CommandID == c.CommandID {
			q.commands[i] = c
			return
		}
	}
	q.commands = append(q.commands, c)
}

// Proposals returns a copy of the pending file proposals.
func (q *Queue) Proposals() []protocol.Proposal {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]protocol.Proposal, len(q.proposals))
	copy(out, q.proposals)
	return out
}

// Commands returns a copy of the pending command proposals.
func (q *Queue) Commands() []protocol.CommandProposal {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]protocol.CommandProposal, len(q.commands))
	copy(out, q.commands)
	return out
}

// Counts returns the pending proposal and command counts.
func (q *Queue) Counts() (proposals, commands int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.proposals), len(q.commands)
}

// DecideProposals drains every pending file proposal and builds one
// decision entry per proposal. Ids missing from statuses are rejected, so
// the batch always covers the whole pending set. The queue is cleared
// unconditionally; delivery is the caller's problem.
func (q *Queue) DecideProposals(statuses map[string]string) []protocol.ProposalDecisionEntry {
	q.mu.Lock()
	pending := q.proposals
	q.proposals = nil
	q.mu.Unlock()

	entries := make([]protocol.ProposalDecisionEntry, 0, len(pending))
	for _, p := range pending {
		status, ok := statuses[p.ProposalID]
		if !ok {
			status = protocol.DecisionRejected
		}
		entries = append(entries, protocol.ProposalDecisionEntry{ProposalID: p.ProposalID, Status: status})
	}
	return entries
}

// DecideCommands drains every pending command proposal into decision
// entries, rejecting ids missing from statuses.
func (q *Queue) DecideCommands(statuses map[string]string) []protocol.CommandDecisionEntry {
	q.mu.Lock()
	pending := q.commands
	q.commands = nil
	q.mu.Unlock()

	entries := make([]protocol.CommandDecisionEntry, 0, len(pending))
	for _, c := range pending {
		status, ok := statuses[c.CommandID]
		if !ok {
			status = protocol.DecisionRejected
		}
		entries = append(entries, protocol.CommandDecisionEntry{CommandID: c.CommandID, Status: status})
	}
	return entries
}

// Clear drops everything pending without building decisions. Used when the
// session is torn down.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.proposals = nil
	q.commands = nil
	q.mu.Unlock()
}
