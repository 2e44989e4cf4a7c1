// Package session tracks per-session identity, turn metering, connection
// state, and the last server-reported error.
package session

import (
	"log/slog"
	"sync"
)

// ConnState is the channel's connection state machine.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Reconnecting
	// GivenUp is terminal until an explicit manual reconnect.
	GivenUp
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case GivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}

// Error is the last server-reported error. Non-recoverable errors halt
// further automated reconnects.
type Error struct {
	Code        string
	Message     string
	Recoverable bool
}

// Snapshot is a point-in-time copy of session state for presentation.
type Snapshot struct {
	ID        string
	Turns     int
	Conn      ConnState
	LastError *Error
}

// State holds live session state. All methods are safe for concurrent use.
type State struct {
	mu      sync.Mutex
	logger  *slog.Logger
	id      string
	turns   int
	conn    ConnState
	lastErr *Error
}

// New builds an empty disconnected session.
func New(logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{logger: logger}
}

// Init records the server-assigned session id and starts metering fresh.
func (s *State) Init(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.turns = 0
	s.lastErr = nil
	s.logger.Info("session initialized", slog.String("session_id", id))
}

// ID returns the server-assigned session id, empty before session_init.
func (s *State) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetConn records a connection state transition.
func (s *State) SetConn(st ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == st {
		return
	}
	s.logger.Debug("connection state",
		slog.String("from", s.conn.String()),
		slog.String("to", st.String()))
	s.conn = st
}

// Conn returns the current connection state.
func (s *State) Conn() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// TurnEnded advances the turn count at a turn boundary. When the server
// supplies an authoritative count it wins, and a disagreement with the
// local prediction is logged rather than silently corrected. Returns the
// recorded count.
func (s *State) TurnEnded(authoritative *int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	predicted := s.turns + 1
	if authoritative == nil {
		s.turns = predicted
		return s.turns
	}
	if *authoritative != predicted {
		s.logger.Warn("turn count mismatch",
			slog.String("session_id", s.id),
			slog.Int("local", predicted),
			slog.Int("server", *authoritative))
	}
	s.turns = *authoritative
	return s.turns
}

// Turns returns the recorded turn count.
func (s *State) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

// SetError records the latest server-reported error.
func (s *State) SetError(e Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = &e
	s.logger.Error("server error",
		slog.String("code", e.Code),
		slog.String("message", e.Message),
		slog.Bool("recoverable", e.Recoverable))
}

// LastError returns the last server-reported error, nil if none.
func (s *State) LastError() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return nil
	}
	e := *s.lastErr
	return &e
}

// Reset clears session identity and metering on disconnect. The last error
// survives for postmortem display until the next Init.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.turns = 0
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{ID: s.id, Turns: s.turns, Conn: s.conn}
	if s.lastErr != nil {
		e := *s.lastErr
		snap.LastError = &e
	}
	return snap
}
