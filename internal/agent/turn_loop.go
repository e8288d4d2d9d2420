package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coreagent/core/internal/schema"
	"github.com/coreagent/core/internal/shared/llmutils"
	"github.com/coreagent/core/internal/tools"
)

const defaultMaxIter = 20

// Turn is the input of one TurnLoop.Run call.
type Turn struct {
	Instruction schema.InstructionMessage

	// Conversation must already end with the user's message. The loop
	// appends every message it produces to it.
	Conversation *schema.Conversation

	// Record is called with each appended message, in order. Used for
	// persistence; may be nil.
	Record func(schema.Message)

	// Observer may be nil.
	Observer Observer
}

// TurnResult summarises a finished turn.
type TurnResult struct {
	Text      string
	State     State
	Cycles    int
	ToolsUsed []string

	// ModelErr is set when the turn ended on the cooling-down placeholder.
	ModelErr error
}

// TurnLoop alternates between asking the model for the next step and
// running the tools it asked for, until the model answers in plain text.
type TurnLoop struct {
	provider   schema.LLMProvider
	tools      *tools.ToolList
	settings   schema.AgentSettings
	normalizer Normalizer
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewTurnLoop(provider schema.LLMProvider, tls *tools.ToolList, settings schema.AgentSettings) *TurnLoop {
	if settings.MaxIter <= 0 {
		settings.MaxIter = defaultMaxIter
	}
	if tls == nil {
		tls = tools.NewToolList()
	}
	return &TurnLoop{
		provider: provider,
		tools:    tls,
		settings: settings,
		sleep:    sleepCtx,
	}
}

// Tools returns the tool list the loop dispatches to.
func (l *TurnLoop) Tools() *tools.ToolList { return l.tools }

// Run drives one turn to DONE.
//
// It returns ErrTurnBudgetExceeded (wrapped) when the cycle cap is hit and
// ctx.Err() when ctx is cancelled before a model call. In both cases every
// assistant message already appended has all its tool results.
func (l *TurnLoop) Run(ctx context.Context, turn Turn) (TurnResult, error) {
	obs := turn.Observer
	if obs == nil {
		obs = ObserverFuncs{}
	}
	appendMsg := func(m schema.Message) {
		turn.Conversation.Append(m)
		if turn.Record != nil {
			turn.Record(m)
		}
	}

	var (
		res     = TurnResult{State: StateAwaitingModel}
		pending schema.AssistantMessage
	)

	for res.State != StateDone {
		switch res.State {
		case StateAwaitingModel:
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if res.Cycles >= l.settings.MaxIter {
				slog.Warn("turn budget exceeded", "cycles", res.Cycles, "max", l.settings.MaxIter)
				appendMsg(schema.NewAssistantText(BudgetExceededText))
				res.Text = BudgetExceededText
				res.State = StateDone
				obs.FinalAnswer(res.Text)
				return res, fmt.Errorf("%w: %d tool cycles", ErrTurnBudgetExceeded, res.Cycles)
			}

			resp, err := l.provider.Chat(ctx,
				l.normalizer.Prepare(turn.Instruction, *turn.Conversation),
				l.tools.Definitions(),
				schema.NewChatOptions(l.settings.Model, l.settings.MaxTokens, l.settings.Temperature),
			)
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				res.ModelErr = fmt.Errorf("%w: %v", ErrModelCall, err)
				slog.Error("LLM error", "err", err, "backoff", l.settings.ModelBackoff)
				obs.ModelFailed(res.ModelErr)
				_ = l.sleep(ctx, l.settings.ModelBackoff)

				appendMsg(schema.NewAssistantText(CoolingDownText))
				res.Text = CoolingDownText
				res.State = StateDone
				continue
			}

			pending = assistantFromResponse(resp)
			appendMsg(pending)
			if pending.HasToolCalls() {
				res.State = StateExecutingTools
			} else {
				res.Text = llmutils.StripThink(pending.Text())
				res.State = StateDone
			}

		case StateExecutingTools:
			res.Cycles++
			for _, tc := range pending.ToolCalls {
				obs.ToolInvoked(tc)
				res.ToolsUsed = append(res.ToolsUsed, tc.Name)
			}
			for _, tr := range l.executeAll(ctx, pending.ToolCalls) {
				appendMsg(tr)
			}
			res.State = StateAwaitingModel
		}
	}

	obs.FinalAnswer(res.Text)
	return res, nil
}

// executeAll runs calls and returns one result per call, in call order.
func (l *TurnLoop) executeAll(ctx context.Context, calls []schema.ToolCall) []schema.ToolResult {
	results := make([]schema.ToolResult, len(calls))
	if !l.settings.ParallelTools || len(calls) < 2 {
		for i, tc := range calls {
			results[i] = l.execute(ctx, tc)
		}
		return results
	}

	var g errgroup.Group
	for i, tc := range calls {
		i, tc := i, tc
		g.Go(func() error {
			results[i] = l.execute(ctx, tc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// execute runs one tool call. It never fails: errors, panics and unknown
// names all come back as error text.
func (l *TurnLoop) execute(ctx context.Context, tc schema.ToolCall) (res schema.ToolResult) {
	argsJSON, _ := json.Marshal(tc.Arguments)
	slog.Info("Tool call", "name", tc.Name, "args", llmutils.Truncate(string(argsJSON), 200))

	t := l.tools.Get(tc.Name)
	if t == nil {
		text := fmt.Sprintf("Error: Tool '%s' not found (%v). Available tools: %s",
			tc.Name, ErrUnknownTool, strings.Join(l.tools.Names(), ", "))
		return schema.NewToolResult(tc.ID, tc.Name, text)
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool panic", "name", tc.Name, "panic", r)
			res = schema.NewToolResult(tc.ID, tc.Name, fmt.Sprintf("Error: %v: %v", ErrToolPanic, r))
		}
	}()

	out, err := t.Execute(ctx, tc.Arguments)
	if err != nil {
		slog.Warn("tool failed", "name", tc.Name, "err", err)
		text := "Error: " + err.Error()
		if out != "" {
			text += "\n" + out
		}
		return schema.NewToolResult(tc.ID, tc.Name, text)
	}
	return schema.NewToolResult(tc.ID, tc.Name, out)
}

// assistantFromResponse converts a provider response into a stored message.
// Calls without an id get one so results can still be paired.
func assistantFromResponse(resp schema.LLMResponse) schema.AssistantMessage {
	var calls []schema.ToolCall
	for _, tc := range resp.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
		}
		args := tc.Arguments
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, schema.ToolCall{ID: id, Name: tc.Name, Arguments: args})
	}
	return schema.NewAssistantMessage(resp.Content, calls, resp.ReasoningContent)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
