// Package ledger mirrors the engine's execution pipeline view: a domain
// label and an ordered list of step nodes, replaced wholesale on each
// update.
package ledger

import (
	"sync"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/protocol"
)

// Node statuses surfaced to presentation layers.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// State holds the current ledger. Updates replace the node list wholesale;
// there is no per-node merge.
type State struct {
	mu     sync.Mutex
	domain string
	nodes  []protocol.LedgerNode
}

// New returns an empty ledger.
func New() *State {
	return &State{}
}

// Apply replaces the ledger with the update's contents.
func (s *State) Apply(u protocol.LedgerUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domain = u.Domain
	s.nodes = make([]protocol.LedgerNode, len(u.Nodes))
	copy(s.nodes, u.Nodes)
}

// Clear empties the ledger.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domain = ""
	s.nodes = nil
}

// Snapshot returns the domain label and a copy of the node list.
func (s *State) Snapshot() (string, []protocol.LedgerNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := make([]protocol.LedgerNode, len(s.nodes))
	copy(nodes, s.nodes)
	return s.domain, nodes
}

// Domain returns the current domain label.
func (s *State) Domain() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domain
}

// Len returns the node count.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}
