package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/coreagent/core/internal/schema"
	"github.com/coreagent/core/internal/session"
	"github.com/coreagent/core/internal/shared/llmutils"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored conversations",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the transcript of one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

func openSessionStore(ctx context.Context) (schema.ConversationStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return session.Open(ctx, cfg.Session, cfg.WorkspacePath())
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No sessions yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMESSAGES\tCREATED\tUPDATED")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", info.ID, info.Messages, formatTime(info.CreatedAt), formatTime(info.UpdatedAt))
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	conv, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}
	if conv.Len() == 0 {
		fmt.Printf("Session %s is empty.\n", args[0])
		return nil
	}
	p := &transcriptPrinter{w: os.Stdout}
	for _, m := range conv.Messages {
		m.Accept(p)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// transcriptPrinter renders a stored conversation for the terminal.
type transcriptPrinter struct {
	w io.Writer
}

func (p *transcriptPrinter) VisitUser(m schema.UserMessage) {
	fmt.Fprintf(p.w, "You: %s\n", schema.ContentText(m.Content))
}

func (p *transcriptPrinter) VisitAssistant(m schema.AssistantMessage) {
	for _, tc := range m.ToolCalls {
		fmt.Fprintf(p.w, "  ↳ %s\n", llmutils.ToolHint(tc))
	}
	if text := m.Text(); text != "" {
		fmt.Fprintf(p.w, "core: %s\n\n", text)
	}
}

func (p *transcriptPrinter) VisitToolResult(m schema.ToolResult) {
	fmt.Fprintf(p.w, "    %s → %s\n", m.Name, llmutils.Truncate(schema.ContentText(m.Content), 120))
}

func (p *transcriptPrinter) VisitInstruction(schema.InstructionMessage) {}
