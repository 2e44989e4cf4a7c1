// Package sessions archives live gateway activity: it listens to the
// bridge as a sink and writes sessions, turns, and ledger snapshots to
// the store.
package sessions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/models"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/protocol"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/session"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/store"
)

// writeTimeout bounds each archive write so a slow disk cannot stall the
// bridge's message loop for long.
const writeTimeout = 5 * time.Second

// Recorder implements bridge.Sink over a Store. Archive failures are
// logged and swallowed; the live session never depends on the archive.
type Recorder struct {
	logger *slog.Logger
	store  store.Store

	mu         sync.Mutex
	current    *models.Session
	closed     *models.Session
	transcript string
}

// NewRecorder builds a recorder writing to st.
func NewRecorder(logger *slog.Logger, st store.Store) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger, store: st}
}

func (r *Recorder) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), writeTimeout)
}

// SessionStarted opens a new archive row for the engine-assigned id.
func (r *Recorder) SessionStarted(id string) {
	sess := &models.Session{RemoteID: id, Status: models.SessionStatusActive}

	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.store.CreateSession(ctx, sess); err != nil {
		r.logger.Warn("archive session create failed", slog.String("error", err.Error()))
		return
	}

	r.mu.Lock()
	r.current = sess
	r.transcript = ""
	r.mu.Unlock()
}

// Transcript remembers the latest recognized utterance; it is attached to
// the turn at the next boundary.
func (r *Recorder) Transcript(text string) {
	r.mu.Lock()
	r.transcript = text
	r.mu.Unlock()
}

// TurnEnded archives one completed turn with the last transcript.
func (r *Recorder) TurnEnded(turns int) {
	r.mu.Lock()
	sess := r.current
	transcript := r.transcript
	r.transcript = ""
	r.mu.Unlock()
	if sess == nil {
		return
	}

	ctx, cancel := r.ctx()
	defer cancel()

	turn := &models.Turn{SessionID: sess.ID, Seq: turns, Transcript: transcript}
	if err := r.store.AddTurn(ctx, turn); err != nil {
		r.logger.Warn("archive turn failed",
			slog.Int("seq", turns),
			slog.String("error", err.Error()))
	}

	sess.Turns = turns
	if err := r.store.UpdateSession(ctx, sess); err != nil {
		r.logger.Warn("archive session update failed", slog.String("error", err.Error()))
	}
}

// LedgerChanged mirrors the wire's wholesale-replace semantics into the
// archive.
func (r *Recorder) LedgerChanged(domain string, nodes []protocol.LedgerNode) {
	r.mu.Lock()
	sess := r.current
	r.mu.Unlock()
	if sess == nil {
		return
	}

	records := make([]*models.LedgerNode, 0, len(nodes))
	for _, n := range nodes {
		rec := &models.LedgerNode{
			NodeID:          n.NodeID,
			Title:           n.Title,
			Description:     n.Description,
			IconType:        n.IconType,
			Status:          n.Status,
			ExecutionOutput: n.ExecutionOutput,
		}
		if n.ParentNodeID != nil {
			rec.ParentNodeID = *n.ParentNodeID
		}
		records = append(records, rec)
	}

	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.store.ReplaceLedgerNodes(ctx, sess.ID, records); err != nil {
		r.logger.Warn("archive ledger failed", slog.String("error", err.Error()))
	}
}

// SessionEnded closes the archive row with the final state. The reconnect
// machinery reports giving up after the row was already closed; that
// follow-up upgrades the last closed row to given_up.
func (r *Recorder) SessionEnded(snap session.Snapshot) {
	r.mu.Lock()
	sess := r.current
	r.current = nil
	if sess != nil {
		r.closed = sess
	}
	closed := r.closed
	r.mu.Unlock()
	if sess == nil {
		if snap.Conn == session.GivenUp && closed != nil {
			closed.Status = models.SessionStatusGivenUp
			ctx, cancel := r.ctx()
			defer cancel()
			if err := r.store.UpdateSession(ctx, closed); err != nil {
				r.logger.Warn("archive give-up failed", slog.String("error", err.Error()))
			}
		}
		return
	}

	now := time.Now().UTC()
	sess.EndedAt = &now
	sess.Turns = snap.Turns
	sess.Status = models.SessionStatusEnded
	if snap.Conn == session.GivenUp {
		sess.Status = models.SessionStatusGivenUp
	}
	if snap.LastError != nil {
		sess.LastError = snap.LastError.Code + ": " + snap.LastError.Message
		if !snap.LastError.Recoverable {
			sess.Status = models.SessionStatusFailed
		}
	}

	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.store.UpdateSession(ctx, sess); err != nil {
		r.logger.Warn("archive session close failed", slog.String("error", err.Error()))
	}
}
