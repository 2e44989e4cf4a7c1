package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from the message loop and
	// CLI touching the archive at once.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Sessions ---

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.ID == "" {
		sess.ID = newULID()
	}
	if sess.Status == "" {
		sess.Status = models.SessionStatusActive
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, remote_id, status, turns, last_error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.RemoteID, sess.Status, sess.Turns, sess.LastError, sess.StartedAt, sess.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	sess := &models.Session{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, remote_id, status, turns, last_error, started_at, ended_at
		FROM sessions WHERE id = ? OR remote_id = ?`, id, id,
	).Scan(&sess.ID, &sess.RemoteID, &sess.Status, &sess.Turns, &sess.LastError, &sess.StartedAt, &sess.EndedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, remote_id, status, turns, last_error, started_at, ended_at
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*models.Session
	for rows.Next() {
		sess := &models.Session{}
		if err := rows.Scan(&sess.ID, &sess.RemoteID, &sess.Status, &sess.Turns, &sess.LastError, &sess.StartedAt, &sess.EndedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *models.Session) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET remote_id=?, status=?, turns=?, last_error=?, ended_at=?
		WHERE id=?`,
		sess.RemoteID, sess.Status, sess.Turns, sess.LastError, sess.EndedAt, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session not found: %s", sess.ID)
	}
	return nil
}

// --- Turns ---

func (s *SQLiteStore) AddTurn(ctx context.Context, t *models.Turn) error {
	if t.ID == "" {
		t.ID = newULID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, seq, transcript, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.Seq, t.Transcript, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add turn: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string) ([]*models.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, transcript, created_at
		FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []*models.Turn
	for rows.Next() {
		t := &models.Turn{}
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &t.Transcript, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// --- Ledger nodes ---

// ReplaceLedgerNodes mirrors the wire semantics: each ledger_update
// replaces the session's node set wholesale.
func (s *SQLiteStore) ReplaceLedgerNodes(ctx context.Context, sessionID string, nodes []*models.LedgerNode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ledger_nodes WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("clear ledger nodes: %w", err)
	}

	now := time.Now().UTC()
	for i, n := range nodes {
		n.SessionID = sessionID
		n.Position = i
		if n.ID == "" {
			n.ID = sessionID + "_" + n.NodeID
		}
		n.TruncateOutput()
		n.UpdatedAt = now
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_nodes (id, session_id, node_id, parent_node_id, position, title, description, icon_type, status, execution_output, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.SessionID, n.NodeID, n.ParentNodeID, n.Position, n.Title, n.Description, n.IconType, n.Status, n.ExecutionOutput, n.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert ledger node %s: %w", n.NodeID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger nodes: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListLedgerNodes(ctx context.Context, sessionID string) ([]*models.LedgerNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, node_id, parent_node_id, position, title, description, icon_type, status, execution_output, updated_at
		FROM ledger_nodes WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list ledger nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var nodes []*models.LedgerNode
	for rows.Next() {
		n := &models.LedgerNode{}
		if err := rows.Scan(&n.ID, &n.SessionID, &n.NodeID, &n.ParentNodeID, &n.Position, &n.Title, &n.Description, &n.IconType, &n.Status, &n.ExecutionOutput, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
