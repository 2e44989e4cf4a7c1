package store

import (
	"context"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/models"
)

// Store defines the persistence interface for the session archive.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, limit int) ([]*models.Session, error)
	UpdateSession(ctx context.Context, s *models.Session) error

	// Turns
	AddTurn(ctx context.Context, t *models.Turn) error
	ListTurns(ctx context.Context, sessionID string) ([]*models.Turn, error)

	// Ledger nodes
	ReplaceLedgerNodes(ctx context.Context, sessionID string, nodes []*models.LedgerNode) error
	ListLedgerNodes(ctx context.Context, sessionID string) ([]*models.LedgerNode, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
