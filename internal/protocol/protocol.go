// Package protocol defines the wire types exchanged with the Voco engine
// over the session channel: tagged event messages, JSON-RPC 2.0 envelopes,
// and the outbound control messages. It also classifies raw inbound frames
// into a tagged variant for the bridge's message loop.
package protocol

// Event type tags observed on inbound text frames.
const (
	EventSessionInit          = "session_init"
	EventError                = "error"
	EventTranscript           = "transcript"
	EventControl              = "control"
	EventJobStart             = "background_job_start"
	EventJobComplete          = "background_job_complete"
	EventLedgerUpdate         = "ledger_update"
	EventLedgerClear          = "ledger_clear"
	EventProposal             = "proposal"
	EventCommandProposal      = "command_proposal"
	EventSandboxLive          = "sandbox_live"
	EventSandboxUpdated       = "sandbox_updated"
	EventScreenCaptureRequest = "screen_capture_request"
	EventScanSecurityRequest  = "scan_security_request"
)

// Control actions carried by EventControl.
const (
	ActionHaltPlayback = "halt_audio_playback"
	ActionTurnEnded    = "turn_ended"
	ActionTTSStart     = "tts_start"
	ActionTTSEnd       = "tts_end"
)

// Outbound message type tags.
const (
	MsgAuthSync           = "auth_sync"
	MsgUpdateEnv          = "update_env"
	MsgProposalDecision   = "proposal_decision"
	MsgCommandDecision    = "command_decision"
	MsgScreenFrames       = "screen_frames"
	MsgScanSecurityResult = "scan_security_result"
)

// Decision statuses for proposal and command batches.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Background job statuses as they appear on the wire.
const (
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)
