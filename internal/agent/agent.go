// Package agent runs conversational turns: it builds the instruction, drives
// the TurnLoop and persists every message of the session as it is produced.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/coreagent/core/internal/schema"
)

// Agent binds a TurnLoop to a session store and an instruction builder.
// Turns of the same session are serialised; different sessions may run
// concurrently.
type Agent struct {
	loop    *TurnLoop
	store   schema.ConversationStore
	builder *InstructionBuilder

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is dropped from Agent.locks once no turn holds or waits on it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewAgent(loop *TurnLoop, store schema.ConversationStore, builder *InstructionBuilder) *Agent {
	return &Agent{
		loop:    loop,
		store:   store,
		builder: builder,
		locks:   map[string]*sessionLock{},
	}
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return "session_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// lockSession blocks until the caller owns session id and returns the
// matching release func.
func (a *Agent) lockSession(id string) (release func()) {
	a.mu.Lock()
	l, ok := a.locks[id]
	if !ok {
		l = &sessionLock{}
		a.locks[id] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		a.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(a.locks, id)
		}
		a.mu.Unlock()
	}
}

func (a *Agent) activeLocks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}

// Ask runs one turn of session sessionID with the user's text.
//
// The stored history is loaded first. Tool calls a previous process left
// unanswered get InterruptedToolText results so the history stays paired.
// The returned error is non-nil when the session cannot be loaded, the turn
// is cancelled, or the cycle budget runs out; TurnResult is still filled in
// for the last two.
func (a *Agent) Ask(ctx context.Context, sessionID, text string, obs Observer) (TurnResult, error) {
	defer a.lockSession(sessionID)()

	conv, err := a.store.Load(ctx, sessionID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	record := func(m schema.Message) {
		// Persist even when the turn is being cancelled.
		if err := a.store.Append(context.WithoutCancel(ctx), sessionID, m); err != nil {
			slog.Error("persist message", "session", sessionID, "kind", m.Kind(), "err", err)
		}
	}

	if pending := conv.PendingToolCalls(); len(pending) > 0 {
		slog.Warn("repairing interrupted tool calls", "session", sessionID, "count", len(pending))
		for _, tc := range pending {
			tr := schema.NewToolResult(tc.ID, tc.Name, InterruptedToolText)
			conv.Append(tr)
			record(tr)
		}
	}

	user := schema.NewUserMessage(text)
	conv.Append(user)
	record(user)

	return a.loop.Run(ctx, Turn{
		Instruction:  a.builder.Build(ctx, text),
		Conversation: &conv,
		Record:       record,
		Observer:     obs,
	})
}

// History returns the stored conversation of sessionID.
func (a *Agent) History(ctx context.Context, sessionID string) (schema.Conversation, error) {
	return a.store.Load(ctx, sessionID)
}

// Sessions lists stored sessions, most recent first.
func (a *Agent) Sessions(ctx context.Context) ([]schema.SessionInfo, error) {
	return a.store.List(ctx)
}

// Tools returns the names of the registered tools.
func (a *Agent) Tools() []string { return a.loop.Tools().Names() }
