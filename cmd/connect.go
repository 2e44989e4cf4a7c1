package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/audio"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/bridge"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/output"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/screen"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/sessions"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/toolexec"
)

var (
	connectProject  string
	connectToken    string
	connectAudioIn  string
	connectAudioOut string
	connectNoAudio  bool
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open a voice session with the engine",
	Long: `Connect to the Voco engine and serve local tool calls.

The session stays up until you quit or the engine goes away; on
unintentional drops voco reconnects with exponential backoff. While
connected, a small command prompt controls the session:

  status        session and connection state
  proposals     pending file and command approvals
  approve-all   approve everything pending
  reject-all    reject everything pending
  jobs          long-running background tools
  ledger        the engine's current plan
  quit          end the session`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return connectRun()
	},
}

func init() {
	connectCmd.Flags().StringVar(&connectProject, "project", "", "Project directory to serve tools from (default cwd)")
	connectCmd.Flags().StringVar(&connectToken, "token", "", "Auth token (overrides config)")
	connectCmd.Flags().StringVar(&connectAudioIn, "audio-in", "", "Raw 16kHz mono PCM source (file or pipe)")
	connectCmd.Flags().StringVar(&connectAudioOut, "audio-out", "", "Playback sink for synthesized PCM (file or pipe)")
	connectCmd.Flags().BoolVar(&connectNoAudio, "no-audio", false, "Text-only session, no audio in either direction")
	rootCmd.AddCommand(connectCmd)
}

// envFromConfig assembles the restricted key set pushed to the engine.
// Config file values win; the process environment backfills.
func envFromConfig() map[string]string {
	env := make(map[string]string)
	for _, key := range bridge.AllowedEnvKeys {
		if v := viper.GetString("keys." + strings.ToLower(key)); v != "" {
			env[key] = v
			continue
		}
		if v := os.Getenv(key); v != "" {
			env[key] = v
		}
	}
	return env
}

func bridgeConfig() bridge.Config {
	token := connectToken
	if token == "" {
		token = viper.GetString("auth.token")
	}
	return bridge.Config{
		URL:          viper.GetString("engine.url"),
		Token:        token,
		UID:          viper.GetString("auth.uid"),
		RefreshToken: viper.GetString("auth.refresh_token"),
		Env:          envFromConfig(),
		Grace:        time.Duration(viper.GetInt("audio.grace_ms")) * time.Millisecond,
		RPCTimeout:   time.Duration(viper.GetInt("rpc.timeout_ms")) * time.Millisecond,
	}
}

func connectRun() error {
	if connectProject != "" {
		// Tool calls resolve relative project roots against the process
		// cwd, so the whole session runs from here.
		if err := os.Chdir(connectProject); err != nil {
			return fmt.Errorf("project directory: %w", err)
		}
	}

	st, err := getStore()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := bridge.New(bridgeConfig(), logger)

	tools := toolexec.New(logger)
	tools.Register(mgr.Dispatcher())
	tools.SetCatalog(mgr.Dispatcher().Methods)

	// Without a capture source there is no frame provider, and frame
	// requests answer capability-unavailable instead of an empty success.
	if frames := screenBuffer(ctx); frames != nil {
		tools.SetFrameProvider(frames)
		mgr.SetFrames(frames)
	}

	mgr.SetSink(sessions.NewRecorder(logger, st))
	mgr.SetNotify(func(msg string) { ui.Warning("%s", msg) })

	if !connectNoAudio {
		if connectAudioOut != "" {
			out, err := os.OpenFile(connectAudioOut, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
			if err != nil {
				return fmt.Errorf("open audio sink: %w", err)
			}
			defer out.Close()
			mgr.SetPlayer(audio.NewStreamPlayer(out))
		}
	}

	go mgr.Jobs().Run(ctx, time.Minute)

	if dryRun {
		ui.DryRunMsg("Would connect to %s", viper.GetString("engine.url"))
		return nil
	}

	ui.Info("Connecting to %s", viper.GetString("engine.url"))
	if err := mgr.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer mgr.Disconnect()

	if !connectNoAudio && connectAudioIn != "" {
		in, err := os.Open(connectAudioIn)
		if err != nil {
			return fmt.Errorf("open audio source: %w", err)
		}
		defer in.Close()
		go pumpAudio(ctx, mgr, in)
	}

	ui.Success("Connected. Type 'help' for session commands.")
	return promptLoop(ctx, mgr)
}

// screenBuffer starts the capture loop when a capture command is
// configured, returning nil otherwise.
func screenBuffer(ctx context.Context) *screen.Buffer {
	cmdline := viper.GetString("screen.capture_cmd")
	if cmdline == "" {
		return nil
	}
	buf := screen.NewBuffer(screen.DefaultMaxFrames)
	go buf.Run(ctx, logger, commandCapture(cmdline), screen.DefaultInterval)
	return buf
}

// commandCapture shells out for one encoded frame per invocation; the
// command writes a JPEG to stdout (e.g. "screencapture -t jpg -x $f").
func commandCapture(cmdline string) screen.CaptureFunc {
	return func(ctx context.Context) ([]byte, error) {
		out, err := exec.CommandContext(ctx, "sh", "-c", cmdline).Output()
		if err != nil {
			return nil, fmt.Errorf("capture command: %w", err)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("capture command produced no output")
		}
		return out, nil
	}
}

// pumpAudio streams mic frames to the engine. Gate drops are silent;
// send failures during a reconnect window are only logged.
func pumpAudio(ctx context.Context, mgr *bridge.Manager, src *os.File) {
	frames := audio.StreamFrames(ctx, src, audio.DefaultFrameBytes, 200*time.Millisecond)
	for frame := range frames {
		if err := mgr.SendAudio(frame); err != nil {
			logger.Debug("audio frame dropped", "error", err.Error())
		}
	}
}

func promptLoop(ctx context.Context, mgr *bridge.Manager) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	fmt.Fprint(ui.Out, "> ")
	for {
		select {
		case <-ctx.Done():
			ui.Info("Shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := runSessionCommand(mgr, line); done {
				return nil
			}
			fmt.Fprint(ui.Out, "> ")
		}
	}
}

func runSessionCommand(mgr *bridge.Manager, line string) (done bool) {
	switch line {
	case "":
	case "help":
		fmt.Fprintln(ui.Out, "Commands: status, proposals, approve-all, reject-all, jobs, ledger, quit")
	case "status":
		printStatus(mgr)
	case "proposals":
		printProposals(mgr)
	case "approve-all":
		decideAll(mgr, "approved")
	case "reject-all":
		decideAll(mgr, "rejected")
	case "jobs":
		printJobs(mgr)
	case "ledger":
		printLedger(mgr)
	case "quit", "exit":
		return true
	default:
		ui.Warning("Unknown command %q (try 'help')", line)
	}
	return false
}

func printStatus(mgr *bridge.Manager) {
	snap := mgr.Session().Snapshot()
	fmt.Fprintf(ui.Out, "  session     %s\n", orDash(snap.ID))
	fmt.Fprintf(ui.Out, "  connection  %s\n", output.StatusColor(snap.Conn.String()))
	fmt.Fprintf(ui.Out, "  turns       %d\n", snap.Turns)
	if snap.LastError != nil {
		fmt.Fprintf(ui.Out, "  last error  %s: %s\n", snap.LastError.Code, snap.LastError.Message)
	}
	proposals, commands := mgr.Queue().Counts()
	fmt.Fprintf(ui.Out, "  pending     %d proposals, %d commands\n", proposals, commands)
	fmt.Fprintf(ui.Out, "  jobs        %d running\n", len(mgr.Jobs().Active()))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printProposals(mgr *bridge.Manager) {
	proposals := mgr.Queue().Proposals()
	commands := mgr.Queue().Commands()
	if len(proposals) == 0 && len(commands) == 0 {
		ui.Info("Nothing pending")
		return
	}

	if len(proposals) > 0 {
		table := ui.Table([]string{"ID", "Action", "File"})
		for _, p := range proposals {
			table.Append([]string{p.ProposalID, p.Action, p.FilePath})
		}
		table.Render()
	}
	if len(commands) > 0 {
		table := ui.Table([]string{"ID", "Command"})
		for _, c := range commands {
			table.Append([]string{c.CommandID, c.Command})
		}
		table.Render()
	}
}

func decideAll(mgr *bridge.Manager, status string) {
	proposals := mgr.Queue().Proposals()
	commands := mgr.Queue().Commands()
	if len(proposals) == 0 && len(commands) == 0 {
		ui.Info("Nothing pending")
		return
	}

	if len(proposals) > 0 {
		statuses := make(map[string]string, len(proposals))
		for _, p := range proposals {
			statuses[p.ProposalID] = status
		}
		if err := mgr.SubmitProposalDecisions(statuses); err != nil {
			ui.Error("Proposal decisions not delivered: %v", err)
		}
	}
	if len(commands) > 0 {
		statuses := make(map[string]string, len(commands))
		for _, c := range commands {
			statuses[c.CommandID] = status
		}
		if err := mgr.SubmitCommandDecisions(statuses); err != nil {
			ui.Error("Command decisions not delivered: %v", err)
		}
	}
	ui.Success("Marked %d items %s", len(proposals)+len(commands), status)
}

func printJobs(mgr *bridge.Manager) {
	active := mgr.Jobs().Active()
	if len(active) == 0 {
		ui.Info("No background jobs")
		return
	}
	table := ui.Table([]string{"ID", "Tool", "Status", "Started"})
	for _, j := range active {
		table.Append([]string{
			j.ID,
			j.Tool,
			output.StatusColor(string(j.Status)),
			j.StartedAt.Format(time.Kitchen),
		})
	}
	table.Render()
}

func printLedger(mgr *bridge.Manager) {
	domain, nodes := mgr.Ledger().Snapshot()
	if len(nodes) == 0 {
		ui.Info("Ledger is empty")
		return
	}
	fmt.Fprintf(ui.Out, "Domain: %s\n", output.Cyan(domain))
	table := ui.Table([]string{"Node", "Title", "Status"})
	for _, n := range nodes {
		table.Append([]string{n.NodeID, n.Title, output.StatusColor(n.Status)})
	}
	table.Render()
}
