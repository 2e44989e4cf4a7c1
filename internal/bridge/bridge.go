// Package bridge owns the persistent channel to the Voco engine: one
// WebSocket per session carrying raw audio frames and structured
// control/RPC traffic. The Manager classifies inbound frames, routes them
// to the session, gate, approval queue, job tracker, ledger, and RPC
// dispatcher, and recovers from connection loss with bounded backoff.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/audio"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/hitl"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/jobs"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/ledger"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/protocol"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/rpc"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/secscan"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/session"
)

// ErrNotConnected is returned by send paths when no channel is open.
var ErrNotConnected = errors.New("not connected")

// DefaultHandshakeTimeout bounds the WebSocket dial.
const DefaultHandshakeTimeout = 10 * time.Second

// AllowedEnvKeys is the restricted set pushed to the engine via
// update_env. Anything else in the configured env is dropped.
var AllowedEnvKeys = []string{
	"DEEPGRAM_API_KEY",
	"CARTESIA_API_KEY",
	"GITHUB_TOKEN",
	"TTS_VOICE",
	"SUPABASE_URL",
	"GOOGLE_API_KEY",
}

// Config describes one gateway session: where to connect, what to
// authenticate with, and the tunables for the gate and reconnect policy.
type Config struct {
	// URL is the engine's stream endpoint, e.g.
	// "ws://localhost:8001/ws/voco-stream".
	URL string

	// Token authenticates the connection (query parameter) and is pushed
	// via auth_sync after connect when non-empty.
	Token        string
	UID          string
	RefreshToken string

	// Env holds API keys pushed via update_env, filtered to AllowedEnvKeys.
	Env map[string]string

	// Grace is the audio gate's post-tts_end hold. Zero selects the
	// gate default.
	Grace time.Duration

	// RPCTimeout bounds each inbound tool call. Zero selects the
	// dispatcher default.
	RPCTimeout time.Duration

	Backoff          Backoff
	HandshakeTimeout time.Duration
}

// FrameProvider supplies recent screen captures, base64-encoded.
type FrameProvider interface {
	Base64() []string
}

// Sink receives session activity for presentation or persistence. All
// methods are called from the message loop and must not block.
type Sink interface {
	SessionStarted(id string)
	Transcript(text string)
	TurnEnded(turns int)
	LedgerChanged(domain string, nodes []protocol.LedgerNode)
	SessionEnded(snap session.Snapshot)
}

// NopSink discards everything. Embed it to implement part of Sink.
type NopSink struct{}

func (NopSink) SessionStarted(string)                   {}
func (NopSink) Transcript(string)                       {}
func (NopSink) TurnEnded(int)                           {}
func (NopSink) LedgerChanged(string, []protocol.LedgerNode) {}
func (NopSink) SessionEnded(session.Snapshot)           {}

// Manager is the session handle: it owns the channel lifecycle and the
// bridge-side state machines. Construct with New, wire collaborators with
// the setters, then Connect.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	sess       *session.State
	gate       *audio.Gate
	queue      *hitl.Queue
	tracker    *jobs.Tracker
	ledger     *ledger.State
	dispatcher *rpc.Dispatcher
	pending    *rpc.Pending

	player audio.Player
	frames FrameProvider
	sink   Sink
	notify func(message string)
	scanFn func(projectPath string) (any, error)

	// mu guards the connection lifecycle fields below. writeMu serializes
	// frame writes; it is never held together with mu.
	mu             sync.Mutex
	writeMu        sync.Mutex
	conn           *websocket.Conn
	gen            uint64
	intentional    bool
	haltRetries    bool
	attempts       int
	reconnectTimer *time.Timer
	notifiedGiveUp bool
}

// New builds a disconnected Manager with default collaborators: a nop
// player, a nop sink, and the real security scanner.
func New(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:        cfg,
		logger:     logger,
		sess:       session.New(logger),
		gate:       audio.NewGate(cfg.Grace),
		queue:      hitl.NewQueue(),
		tracker:    jobs.NewTracker(logger, 0, 0),
		ledger:     ledger.New(),
		dispatcher: rpc.NewDispatcher(logger, cfg.RPCTimeout),
		pending:    rpc.NewPending(),
		player:     audio.NopPlayer{},
		sink:       NopSink{},
		notify:     func(string) {},
	}
	m.scanFn = func(path string) (any, error) { return secscan.Scan(path) }
	return m
}

// SetPlayer wires the native audio player for inbound synthesized speech.
func (m *Manager) SetPlayer(p audio.Player) { m.player = p }

// SetSink wires a session activity sink.
func (m *Manager) SetSink(s Sink) { m.sink = s }

// SetNotify wires the user-facing notification callback.
func (m *Manager) SetNotify(fn func(string)) { m.notify = fn }

// SetFrames wires the screen capture buffer.
func (m *Manager) SetFrames(fp FrameProvider) { m.frames = fp }

// SetScanner replaces the security scanner, used by tests.
func (m *Manager) SetScanner(fn func(string) (any, error)) { m.scanFn = fn }

// Session returns the live session state.
func (m *Manager) Session() *session.State { return m.sess }

// Gate returns the audio gate.
func (m *Manager) Gate() *audio.Gate { return m.gate }

// Queue returns the HITL approval queue.
func (m *Manager) Queue() *hitl.Queue { return m.queue }

// Jobs returns the background job tracker.
func (m *Manager) Jobs() *jobs.Tracker { return m.tracker }

// Ledger returns the execution ledger mirror.
func (m *Manager) Ledger() *ledger.State { return m.ledger }

// Dispatcher returns the RPC dispatcher for handler registration.
func (m *Manager) Dispatcher() *rpc.Dispatcher { return m.dispatcher }

// Connect opens the channel. It is idempotent while connected, and a
// manual Connect clears the given-up state and the retry halt left by a
// non-recoverable server error.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.attempts = 0
	m.haltRetries = false
	m.notifiedGiveUp = false
	m.intentional = false
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.mu.Unlock()

	m.sess.SetConn(session.Connecting)
	if err := m.dial(ctx); err != nil {
		m.sess.SetConn(session.Disconnected)
		return err
	}
	return nil
}

// Disconnect closes the channel intentionally, suppressing reconnect. The
// reconnect timer is cancelled; in-flight tool calls are not, their late
// responses are discarded with the connection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.intentional = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		m.sess.SetConn(session.Disconnected)
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
}

// Connected reports whether a channel is currently open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// dial opens the socket and starts the read loop. Used by Connect and by
// the reconnect timer.
func (m *Manager) dial(ctx context.Context) error {
	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	target, err := m.endpoint()
	if err != nil {
		return err
	}

	timeout := m.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	m.logger.Info("connecting", slog.String("url", m.cfg.URL))
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.cfg.URL, err)
	}

	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	m.conn = conn
	m.gen++
	gen := m.gen
	m.attempts = 0
	m.mu.Unlock()

	m.sess.SetConn(session.Connected)
	go m.readLoop(conn, gen)
	m.syncAuth()
	return nil
}

func (m *Manager) endpoint() (string, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", m.cfg.URL, err)
	}
	if m.cfg.Token != "" {
		q := u.Query()
		q.Set("token", m.cfg.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// syncAuth pushes auth material and the allowed env keys after connect.
// Failures are logged; the session stays up either way.
func (m *Manager) syncAuth() {
	if m.cfg.Token != "" {
		msg := protocol.NewAuthSync(m.cfg.Token, m.cfg.UID, m.cfg.RefreshToken)
		if err := m.sendJSON(msg); err != nil {
			m.logger.Warn("auth_sync failed", slog.String("error", err.Error()))
		}
	}
	env := map[string]string{}
	for _, key := range AllowedEnvKeys {
		if v, ok := m.cfg.Env[key]; ok && v != "" {
			env[key] = v
		}
	}
	if len(env) > 0 {
		if err := m.sendJSON(protocol.NewUpdateEnv(env)); err != nil {
			m.logger.Warn("update_env failed", slog.String("error", err.Error()))
		}
	}
}

// readLoop drains the connection, classifying and routing every frame.
// It exits when the connection dies and hands off to onClosed.
func (m *Manager) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			m.onClosed(gen, err)
			return
		}
		m.handleInbound(protocol.Classify(msgType == websocket.BinaryMessage, data))
	}
}

// onClosed runs once per connection teardown. A stale generation means a
// newer connection already exists and there is nothing to do.
func (m *Manager) onClosed(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	intentional := m.intentional
	halt := m.haltRetries
	m.mu.Unlock()

	m.pending.FailAll(protocol.CodeExecutionFailed, "connection lost")
	m.gate.Stop()

	snap := m.sess.Snapshot()
	m.sink.SessionEnded(snap)
	m.sess.Reset()

	if intentional {
		m.logger.Info("disconnected")
		m.sess.SetConn(session.Disconnected)
		return
	}
	if halt {
		m.logger.Warn("connection lost; automatic reconnect halted by non-recoverable server error")
		m.sess.SetConn(session.Disconnected)
		return
	}
	m.logger.Warn("connection lost", slog.String("error", cause.Error()))
	m.scheduleReconnect()
}

// scheduleReconnect arms the single reconnect timer, or gives up once the
// attempt budget is spent. The terminal notification fires exactly once
// per episode.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.intentional || m.reconnectTimer != nil {
		m.mu.Unlock()
		return
	}
	if m.cfg.Backoff.Exhausted(m.attempts) {
		already := m.notifiedGiveUp
		m.notifiedGiveUp = true
		attempts := m.attempts
		m.mu.Unlock()
		m.sess.SetConn(session.GivenUp)
		if !already {
			m.logger.Error("reconnect attempts exhausted",
				slog.Int("attempts", attempts))
			m.sink.SessionEnded(m.sess.Snapshot())
			m.notify("Connection lost and could not be restored. Run connect to retry.")
		}
		return
	}

	attempt := m.attempts
	m.attempts++
	delay := m.cfg.Backoff.Delay(attempt)
	m.sess.SetConn(session.Reconnecting)
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.reconnectTimer = nil
		skip := m.intentional
		m.mu.Unlock()
		if skip {
			return
		}
		if err := m.dial(context.Background()); err != nil {
			m.logger.Warn("reconnect failed", slog.String("error", err.Error()))
			m.scheduleReconnect()
		}
	})
	m.mu.Unlock()

	m.logger.Info("reconnect scheduled",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))
}

// handleInbound routes one classified frame. Parse failures are logged
// and discarded, never fatal to the session.
func (m *Manager) handleInbound(in protocol.Inbound) {
	switch in.Kind {
	case protocol.KindAudio:
		if err := m.player.Play(in.Audio); err != nil {
			m.logger.Warn("audio playback failed", slog.String("error", err.Error()))
		}
	case protocol.KindEvent:
		m.handleEvent(in.Event)
	case protocol.KindRequest:
		m.dispatcher.Dispatch(context.Background(), in.Request, m.sendResponse)
	case protocol.KindResponse:
		if !m.pending.Resolve(in.Response) {
			m.logger.Debug("unmatched rpc response discarded",
				slog.String("id", protocol.CorrelationKey(in.Response.ID)))
		}
	case protocol.KindInvalid:
		m.logger.Warn("unroutable frame discarded", slog.String("error", in.Err.Error()))
	}
}

func (m *Manager) handleEvent(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventSessionInit:
		var init protocol.SessionInit
		if err := ev.Decode(&init); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		m.sess.Init(init.SessionID)
		m.sink.SessionStarted(init.SessionID)

	case protocol.EventError:
		var se protocol.ErrorEvent
		if err := ev.Decode(&se); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		m.sess.SetError(session.Error{Code: se.Code, Message: se.Message, Recoverable: se.Recoverable})
		if !se.Recoverable {
			m.mu.Lock()
			m.haltRetries = true
			m.mu.Unlock()
			m.notify(fmt.Sprintf("Engine error (%s): %s", se.Code, se.Message))
		}

	case protocol.EventTranscript:
		var tr protocol.Transcript
		if err := ev.Decode(&tr); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		m.sink.Transcript(tr.Text)

	case protocol.EventControl:
		var ctl protocol.Control
		if err := ev.Decode(&ctl); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		m.handleControl(ctl)

	case protocol.EventJobStart:
		var js protocol.JobStart
		if err := ev.Decode(&js); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		m.tracker.Start(js.JobID, js.ToolName)

	case protocol.EventJobComplete:
		var jc protocol.JobComplete
		if err := ev.Decode(&jc); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		m.tracker.Complete(jc.JobID, jobs.Status(jc.Status), jc.Output)

	case protocol.EventLedgerUpdate:
		var lu protocol.LedgerUpdate
		if err := ev.Decode(&lu); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		m.ledger.Apply(lu)
		m.sink.LedgerChanged(lu.Domain, lu.Nodes)

	case protocol.EventLedgerClear:
		m.ledger.Clear()
		m.sink.LedgerChanged("", nil)

	case protocol.EventProposal:
		var p protocol.Proposal
		if err := ev.Decode(&p); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		m.queue.AddProposal(p)
		m.logger.Info("proposal queued",
			slog.String("proposal_id", p.ProposalID),
			slog.String("action", p.Action),
			slog.String("file", p.FilePath))

	case protocol.EventCommandProposal:
		var c protocol.CommandProposal
		if err := ev.Decode(&c); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		m.queue.AddCommand(c)
		m.logger.Info("command proposal queued",
			slog.String("command_id", c.CommandID),
			slog.String("command", c.Command))

	case protocol.EventSandboxLive, protocol.EventSandboxUpdated:
		var sb protocol.SandboxEvent
		if err := ev.Decode(&sb); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		m.notify(fmt.Sprintf("Sandbox preview: %s", sb.URL))

	case protocol.EventScreenCaptureRequest:
		var req protocol.ScreenCaptureRequest
		if err := ev.Decode(&req); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		var frames []string
		if m.frames != nil {
			frames = m.frames.Base64()
		}
		if err := m.sendJSON(protocol.NewScreenFrames(req.ID, frames, "image/jpeg")); err != nil {
			m.logger.Warn("screen_frames reply failed", slog.String("error", err.Error()))
		}

	case protocol.EventScanSecurityRequest:
		var req protocol.ScanSecurityRequest
		if err := ev.Decode(&req); err != nil {
			m.logEventError(ev.Type, err)
			return
		}
		// Scans walk the project tree; keep the message loop free.
		go m.answerScan(req)

	default:
		m.logger.Warn("unrecognized event discarded", slog.String("type", ev.Type))
	}
}

func (m *Manager) handleControl(ctl protocol.Control) {
	switch ctl.Action {
	case protocol.ActionHaltPlayback:
		m.player.Halt()
		m.gate.OnBargeIn()
	case protocol.ActionTurnEnded:
		turns := m.sess.TurnEnded(ctl.TurnCount)
		m.gate.OnTurnEnded()
		m.sink.TurnEnded(turns)
	case protocol.ActionTTSStart:
		m.gate.OnTTSStart()
	case protocol.ActionTTSEnd:
		m.gate.OnTTSEnd()
	default:
		m.logger.Warn("unrecognized control action", slog.String("action", ctl.Action))
	}
}

func (m *Manager) answerScan(req protocol.ScanSecurityRequest) {
	findings, err := m.scanFn(req.ProjectPath)
	var msg protocol.ScanSecurityResult
	if err != nil {
		msg = protocol.NewScanSecurityResult(req.ID, nil, err.Error())
	} else {
		msg = protocol.NewScanSecurityResult(req.ID, findings, "")
	}
	if err := m.sendJSON(msg); err != nil {
		m.logger.Warn("scan_security_result reply failed", slog.String("error", err.Error()))
	}
}

func (m *Manager) logEventError(eventType string, err error) {
	m.logger.Warn("malformed event discarded",
		slog.String("type", eventType),
		slog.String("error", err.Error()))
}

// SendAudio forwards one captured PCM chunk, subject to the gate: chunks
// are dropped silently while synthesized speech plays.
func (m *Manager) SendAudio(pcm []byte) error {
	if !m.gate.Allow() {
		return nil
	}
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, pcm)
}

// sendJSON marshals and writes one text frame. Writes are serialized so
// concurrent RPC responses cannot interleave on the wire.
func (m *Manager) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) sendResponse(resp protocol.Response) error {
	return m.sendJSON(resp)
}

// Call sends a locally-initiated JSON-RPC request and waits for the
// matching response or context cancellation.
func (m *Manager) Call(ctx context.Context, method string, params any) (protocol.Response, error) {
	id := rpc.NewCallID("req")
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("build request: %w", err)
	}

	ch, cancel := m.pending.Register(id)
	defer cancel()

	if err := m.sendJSON(req); err != nil {
		return protocol.Response{}, err
	}
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return protocol.Response{}, ctx.Err()
	}
}

// SubmitProposalDecisions drains the pending file proposals into one
// decision batch and sends it. The queue is cleared whether or not the
// send succeeds; a closed channel surfaces as the returned error.
func (m *Manager) SubmitProposalDecisions(statuses map[string]string) error {
	entries := m.queue.DecideProposals(statuses)
	if len(entries) == 0 {
		return nil
	}
	if err := m.sendJSON(protocol.NewProposalDecision(entries)); err != nil {
		return fmt.Errorf("send proposal decisions: %w", err)
	}
	m.logger.Info("proposal decisions sent", slog.Int("count", len(entries)))
	return nil
}

// SubmitCommandDecisions drains the pending command proposals into one
// decision batch and sends it, with the same optimistic-clear semantics.
func (m *Manager) SubmitCommandDecisions(statuses map[string]string) error {
	entries := m.queue.DecideCommands(statuses)
	if len(entries) == 0 {
		return nil
	}
	if err := m.sendJSON(protocol.NewCommandDecision(entries)); err != nil {
		return fmt.Errorf("send command decisions: %w", err)
	}
	m.logger.Info("command decisions sent", slog.Int("count", len(entries)))
	return nil
}
