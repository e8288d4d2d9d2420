package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coreagent/core/internal/agent"
	"github.com/coreagent/core/internal/dependency"
	"github.com/coreagent/core/internal/schema"
	"github.com/coreagent/core/internal/shared/cmdutils"
	"github.com/coreagent/core/internal/shared/llmutils"
)

var (
	agentMessage    string
	agentSession    string
	agentNewSession bool
	agentLogs       bool
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Chat with the agent",
	RunE:  runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "Send a single message and exit")
	agentCmd.Flags().StringVarP(&agentSession, "session", "s", "", "Session ID (default from config)")
	agentCmd.Flags().BoolVar(&agentNewSession, "new-session", false, "Start a fresh session")
	agentCmd.Flags().BoolVar(&agentLogs, "logs", false, "Show runtime logs on stderr")
}

var exitCommands = map[string]bool{
	"exit":     true,
	"quit":     true,
	"shutdown": true,
	"/exit":    true,
	"/quit":    true,
	":q":       true,
}

const replHelp = `Commands:
  /new    start a fresh session
  /help   show this help
  exit    leave (also quit, shutdown, /exit, /quit, :q)`

func runAgent(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logCloser, err := setupLogging(cfg, agentLogs)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	sessionID := agentSession
	if sessionID == "" {
		sessionID = cfg.Agents.Defaults.SessionID
	}
	if sessionID == "" || agentNewSession {
		sessionID = agent.NewSessionID()
	}

	if agentMessage != "" {
		return runSingleMessage(ctx, container.Agent(), sessionID)
	}
	return newREPL(container, sessionID).run(ctx)
}

// consoleObserver prints tool hints and model failures as the turn runs.
func consoleObserver() agent.Observer {
	return agent.ObserverFuncs{
		OnTool: func(tc schema.ToolCall) {
			cmdutils.PrintNotice(os.Stdout, "%s", llmutils.ToolHint(tc))
		},
		OnModelFailed: func(err error) {
			cmdutils.PrintNotice(os.Stdout, "model error: %v", err)
		},
	}
}

func runSingleMessage(ctx context.Context, a *agent.Agent, sessionID string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := a.Ask(ctx, sessionID, agentMessage, consoleObserver())
	if err != nil && !errors.Is(err, agent.ErrTurnBudgetExceeded) {
		return err
	}
	cmdutils.PrintResponse(os.Stdout, res.Text)
	return nil
}

// repl reads one line per turn. The first Ctrl+C during a turn cancels it;
// a second one, or any Ctrl+C at the prompt, exits.
type repl struct {
	container *dependency.ServiceContainer
	sessionID string

	mu         sync.Mutex
	cancelTurn context.CancelFunc
}

func newREPL(c *dependency.ServiceContainer, sessionID string) *repl {
	return &repl{container: c, sessionID: sessionID}
}

func (r *repl) run(ctx context.Context) error {
	fmt.Printf("%s Interactive mode, session %s (type /help for commands)\n\n", cmdutils.Logo, r.sessionID)
	r.listenForSignals()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case exitCommands[strings.ToLower(line)]:
			fmt.Println("Goodbye!")
			return nil
		case line == "/help":
			fmt.Println(replHelp)
			continue
		case line == "/new":
			r.sessionID = agent.NewSessionID()
			fmt.Printf("Started session %s\n\n", r.sessionID)
			continue
		}

		r.ask(ctx, line)
	}
}

func (r *repl) ask(ctx context.Context, line string) {
	turnCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancelTurn = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancelTurn = nil
		r.mu.Unlock()
		cancel()
	}()

	res, err := r.container.Agent().Ask(turnCtx, r.sessionID, line, consoleObserver())
	switch {
	case errors.Is(err, context.Canceled):
		cmdutils.PrintNotice(os.Stdout, "turn cancelled")
		fmt.Println()
		return
	case errors.Is(err, agent.ErrTurnBudgetExceeded):
		cmdutils.PrintNotice(os.Stdout, "%v", err)
	case err != nil:
		cmdutils.PrintNotice(os.Stdout, "error: %v", err)
		fmt.Println()
		return
	}
	cmdutils.PrintResponse(os.Stdout, res.Text)
}

func (r *repl) listenForSignals() {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			r.mu.Lock()
			cancel := r.cancelTurn
			r.cancelTurn = nil
			r.mu.Unlock()

			if sig == syscall.SIGINT && cancel != nil {
				fmt.Println("\nInterrupting, press Ctrl+C again to exit...")
				cancel()
				continue
			}
			fmt.Println("\nGoodbye!")
			_ = r.container.Close()
			os.Exit(0)
		}
	}()
}
