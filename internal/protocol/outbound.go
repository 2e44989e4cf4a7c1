package protocol

// AuthSync pushes the user's auth material to the engine after connect.
type AuthSync struct {
	Type         string `json:"type"`
	Token        string `json:"token"`
	UID          string `json:"uid,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// NewAuthSync builds an auth_sync message.
func NewAuthSync(token, uid, refreshToken string) AuthSync {
	return AuthSync{Type: MsgAuthSync, Token: token, UID: uid, RefreshToken: refreshToken}
}

// UpdateEnv pushes API keys and settings the engine is allowed to receive.
type UpdateEnv struct {
	Type string            `json:"type"`
	Env  map[string]string `json:"env"`
}

// NewUpdateEnv builds an update_env message.
func NewUpdateEnv(env map[string]string) UpdateEnv {
	return UpdateEnv{Type: MsgUpdateEnv, Env: env}
}

// ProposalDecisionEntry is one decision in a proposal batch.
type ProposalDecisionEntry struct {
	ProposalID string `json:"proposal_id"`
	Status     string `json:"status"`
}

// ProposalDecision carries a whole batch of file-proposal decisions.
type ProposalDecision struct {
	Type      string                  `json:"type"`
	Decisions []ProposalDecisionEntry `json:"decisions"`
}

// NewProposalDecision builds a proposal_decision message.
func NewProposalDecision(decisions []ProposalDecisionEntry) ProposalDecision {
	return ProposalDecision{Type: MsgProposalDecision, Decisions: decisions}
}

// CommandDecisionEntry is one decision in a command batch.
type CommandDecisionEntry struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
}

// CommandDecision carries a whole batch of command decisions.
type CommandDecision struct {
	Type      string                 `json:"type"`
	Decisions []CommandDecisionEntry `json:"decisions"`
}

// NewCommandDecision builds a command_decision message.
func NewCommandDecision(decisions []CommandDecisionEntry) CommandDecision {
	return CommandDecision{Type: MsgCommandDecision, Decisions: decisions}
}

// ScreenFrames answers a screen_capture_request.
type ScreenFrames struct {
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	Frames    []string `json:"frames"`
	MediaType string   `json:"media_type"`
}

// NewScreenFrames builds a screen_frames reply for the given request id.
func NewScreenFrames(id string, frames []string, mediaType string) ScreenFrames {
	if frames == nil {
		frames = []string{}
	}
	return ScreenFrames{Type: MsgScreenFrames, ID: id, Frames: frames, MediaType: mediaType}
}

// ScanSecurityResult answers a scan_security_request.
type ScanSecurityResult struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Findings any    `json:"findings"`
	Error    string `json:"error,omitempty"`
}

// NewScanSecurityResult builds a scan_security_result reply.
func NewScanSecurityResult(id string, findings any, errMsg string) ScanSecurityResult {
	return ScanSecurityResult{Type: MsgScanSecurityResult, ID: id, Findings: findings, Error: errMsg}
}
