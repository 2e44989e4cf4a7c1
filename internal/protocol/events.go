package protocol

import "encoding/json"

// Event is a tagged inbound message. Raw holds the full frame so handlers
// can decode the payload shape they expect.
type Event struct {
	Type string `json:"type"`
	Raw  json.RawMessage
}

// Decode unmarshals the event's raw frame into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// SessionInit announces the server-assigned session id.
type SessionInit struct {
	SessionID string `json:"session_id"`
}

// ErrorEvent is a server-reported error with a recoverability hint.
type ErrorEvent struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Recoverable bool           `json:"recoverable"`
	SessionID   string         `json:"session_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Server error codes observed from the engine.
const (
	ErrCodeSTTFailed       = "E_STT_FAILED"
	ErrCodeTTSFailed       = "E_TTS_FAILED"
	ErrCodeRPCTimeout      = "E_RPC_TIMEOUT"
	ErrCodeGraphFailed     = "E_GRAPH_FAILED"
	ErrCodeAuthExpired     = "E_AUTH_EXPIRED"
	ErrCodeModelOverloaded = "E_MODEL_OVERLOADED"
)

// Transcript carries recognized user speech.
type Transcript struct {
	Text string `json:"text"`
}

// Control is a playback/turn control event. TurnCount, when present on a
// turn_ended action, is the server's authoritative turn count.
type Control struct {
	Action    string `json:"action"`
	Text      string `json:"text,omitempty"`
	TurnCount *int   `json:"turn_count,omitempty"`
}

// JobStart announces an asynchronous tool invocation.
type JobStart struct {
	JobID    string `json:"job_id"`
	ToolName string `json:"tool_name"`
}

// JobComplete finishes a background job with a terminal status.
type JobComplete struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
}

// LedgerNode is one pipeline step in a ledger update.
type LedgerNode struct {
	NodeID          string  `json:"node_id"`
	ParentNodeID    *string `json:"parent_node_id,omitempty"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	IconType        string  `json:"icon_type,omitempty"`
	Status          string  `json:"status"`
	ExecutionOutput string  `json:"execution_output,omitempty"`
}

// LedgerUpdate replaces the presented ledger wholesale.
type LedgerUpdate struct {
	Domain string       `json:"domain"`
	Nodes  []LedgerNode `json:"nodes"`
}

// Proposal asks the user to approve a file create or edit.
type Proposal struct {
	ProposalID  string `json:"proposal_id"`
	Action      string `json:"action"`
	FilePath    string `json:"file_path"`
	Content     string `json:"content,omitempty"`
	Diff        string `json:"diff,omitempty"`
	Description string `json:"description,omitempty"`
	ProjectRoot string `json:"project_root,omitempty"`
}

// CommandProposal asks the user to approve a shell command.
type CommandProposal struct {
	CommandID   string `json:"command_id"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	ProjectPath string `json:"project_path,omitempty"`
}

// SandboxEvent reports the live-preview sandbox URL.
type SandboxEvent struct {
	URL string `json:"url"`
}

// ScreenCaptureRequest asks the host for recent screen frames. Answered by
// a screen_frames message carrying the same id.
type ScreenCaptureRequest struct {
	ID string `json:"id"`
}

// ScanSecurityRequest asks the host to scan a project. Answered by a
// scan_security_result message carrying the same id.
type ScanSecurityRequest struct {
	ID          string `json:"id"`
	ProjectPath string `json:"project_path"`
}
