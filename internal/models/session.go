package models

import "time"

// SessionStatus represents the state of an archived gateway session.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusEnded    SessionStatus = "ended"
	SessionStatusFailed   SessionStatus = "failed"
	SessionStatusGivenUp  SessionStatus = "given_up"
)

// Session is one archived gateway session. ID is a local ULID; RemoteID is
// the engine-assigned session id from session_init.
type Session struct {
	ID        string
	RemoteID  string
	Status    SessionStatus
	Turns     int
	LastError string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Turn is one completed user-utterance-to-response cycle within a session.
type Turn struct {
	ID         string
	SessionID  string
	Seq        int
	Transcript string
	CreatedAt  time.Time
}
