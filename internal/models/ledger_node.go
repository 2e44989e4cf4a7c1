package models

import "time"

// maxExecutionOutput bounds the stored output per ledger node so a noisy
// tool cannot bloat the archive.
const maxExecutionOutput = 4000

// LedgerNode is one archived pipeline step. ID is "<session>_<node>" so
// node ids only need to be unique within a session.
type LedgerNode struct {
	ID              string
	SessionID       string
	NodeID          string
	ParentNodeID    string
	Position        int
	Title           string
	Description     string
	IconType        string
	Status          string
	ExecutionOutput string
	UpdatedAt       time.Time
}

// TruncateOutput clips ExecutionOutput to the archive bound.
func (n *LedgerNode) TruncateOutput() {
	if len(n.ExecutionOutput) > maxExecutionOutput {
		n.ExecutionOutput = n.ExecutionOutput[:maxExecutionOutput]
	}
}
