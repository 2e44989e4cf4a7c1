package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/output"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse archived voice sessions",
	Long: `Browse the local session archive.

Running bare 'voco sessions' is the same as 'voco sessions list'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionsListRun()
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionsListRun()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's turns and final ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionsShowRun(args[0])
	},
}

func init() {
	sessionsListCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum sessions to list")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func sessionsListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	list, err := s.ListSessions(context.Background(), sessionsLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ui.Info("No sessions archived yet. Run 'voco connect' to start one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Status", "Turns", "Started", "Duration"})
	for _, sess := range list {
		duration := "-"
		if sess.EndedAt != nil {
			duration = sess.EndedAt.Sub(sess.StartedAt).Round(time.Second).String()
		}
		table.Append([]string{
			output.Cyan(sess.ID),
			output.StatusColor(string(sess.Status)),
			fmt.Sprintf("%d", sess.Turns),
			sess.StartedAt.Local().Format("2006-01-02 15:04"),
			duration,
		})
	}
	table.Render()
	return nil
}

func sessionsShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "Session %s\n", output.Cyan(sess.ID))
	fmt.Fprintf(ui.Out, "  engine id  %s\n", sess.RemoteID)
	fmt.Fprintf(ui.Out, "  status     %s\n", output.StatusColor(string(sess.Status)))
	fmt.Fprintf(ui.Out, "  turns      %d\n", sess.Turns)
	fmt.Fprintf(ui.Out, "  started    %s\n", sess.StartedAt.Local().Format(time.RFC1123))
	if sess.EndedAt != nil {
		fmt.Fprintf(ui.Out, "  ended      %s\n", sess.EndedAt.Local().Format(time.RFC1123))
	}
	if sess.LastError != "" {
		fmt.Fprintf(ui.Out, "  last error %s\n", output.Red(sess.LastError))
	}

	turns, err := s.ListTurns(ctx, sess.ID)
	if err != nil {
		return err
	}
	if len(turns) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Turn", "Transcript"})
		for _, t := range turns {
			table.Append([]string{fmt.Sprintf("%d", t.Seq), t.Transcript})
		}
		table.Render()
	}

	nodes, err := s.ListLedgerNodes(ctx, sess.ID)
	if err != nil {
		return err
	}
	if len(nodes) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Node", "Title", "Status"})
		for _, n := range nodes {
			table.Append([]string{n.NodeID, n.Title, output.StatusColor(n.Status)})
		}
		table.Render()
	}
	return nil
}
