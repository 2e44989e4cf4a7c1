package hitl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/protocol"
)

func TestQueuesAreIndependent(t *testing.T) {
	q := NewQueue()

	q.AddProposal(protocol.Proposal{ProposalID: "p1", Action: "create_file", FilePath: "a.go"})
	q.AddCommand(protocol.CommandProposal{CommandID: "c1", Command: "go test ./..."})

	p, c := q.Counts()
	assert.Equal(t, 1, p)
	assert.Equal(t, 1, c)

	q.DecideProposals(map[string]string{"p1": protocol.DecisionApproved})
	p, c = q.Counts()
	assert.Equal(t, 0, p)
	assert.Equal(t, 1, c, "deciding proposals must not touch the command queue")
}

func TestDuplicateProposalReplaced(t *testing.T) {
	q := NewQueue()
	q.AddProposal(protocol.Proposal{ProposalID: "p1", Description: "first"})
	q.AddProposal(protocol.Proposal{ProposalID: "p1", Description: "second"})

	got := q.Proposals()
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Description)
}

func TestDecideProposalsCoversWholeSet(t *testing.T) {
	q := NewQueue()
	q.AddProposal(protocol.Proposal{ProposalID: "p1"})
	q.AddProposal(protocol.Proposal{ProposalID: "p2"})
	q.AddProposal(protocol.Proposal{ProposalID: "p3"})

	entries := q.DecideProposals(map[string]string{
		"p1": protocol.DecisionApproved,
		"p2": protocol.DecisionRejected,
		// p3 intentionally absent
	})

	require.Len(t, entries, 3, "batch must carry a status for every pending proposal")
	byID := map[string]string{}
	for _, e := range entries {
		byID[e.ProposalID] = e.Status
	}
	assert.Equal(t, protocol.DecisionApproved, byID["p1"])
	assert.Equal(t, protocol.DecisionRejected, byID["p2"])
	assert.Equal(t, protocol.DecisionRejected, byID["p3"], "undecided ids default to rejected")

	p, _ := q.Counts()
	assert.Zero(t, p, "queue is cleared as a whole batch")
}

func TestDecideCommands(t *testing.T) {
	q := NewQueue()
	q.AddCommand(protocol.CommandProposal{CommandID: "c1", Command: "rm -rf build"})
	q.AddCommand(protocol.CommandProposal{CommandID: "c2", Command: "npm install"})

	entries := q.DecideCommands(map[string]string{"c2": protocol.DecisionApproved})

	require.Len(t, entries, 2)
	byID := map[string]string{}
	for _, e := range entries {
		byID[e.CommandID] = e.Status
	}
	assert.Equal(t, protocol.DecisionRejected, byID["c1"])
	assert.Equal(t, protocol.DecisionApproved, byID["c2"])

	_, c := q.Counts()
	assert.Zero(t, c)
}

func TestDecideEmptyQueue(t *testing.T) {
	q := NewQueue()
	assert.Empty(t, q.DecideProposals(nil))
	assert.Empty(t, q.DecideCommands(nil))
}

func TestClear(t *testing.T) {
	q := NewQueue()
	q.AddProposal(protocol.Proposal{ProposalID: "p1"})
	q.AddCommand(protocol.CommandProposal{CommandID: "c1"})

	q.Clear()

	p, c := q.Counts()
	assert.Zero(t, p)
	assert.Zero(t, c)
}

func TestSnapshotsAreCopies(t *testing.T) {
	q := NewQueue()
	q.AddProposal(protocol.Proposal{ProposalID: "p1", FilePath: "main.go"})

	snap := q.Proposals()
	snap[0].FilePath = "mutated.go"

	assert.Equal(t, "main.go", q.Proposals()[0].FilePath)
}
