package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coreagent/core/internal/schema"
	"github.com/coreagent/core/internal/tools"
)

func newTestAgent(t *testing.T, p schema.LLMProvider, mem schema.MemoryStore, ts ...schema.Tool) (*Agent, *memStore) {
	t.Helper()
	list := tools.NewToolList(ts...)
	loop := NewTurnLoop(p, list, schema.AgentSettings{})
	loop.sleep = func(context.Context, time.Duration) error { return nil }
	store := newMemStore()
	return NewAgent(loop, store, NewInstructionBuilder(t.TempDir(), list, mem, 2, "")), store
}

// ─── Instruction ───────────────────────────────────────────────────────────

func TestInstruction_Sections(t *testing.T) {
	ws := t.TempDir()
	_ = os.WriteFile(filepath.Join(ws, "INSTRUCTIONS.md"), []byte("Answer in French."), 0o644)
	mem := &recallMemory{snippets: []string{"User likes tea.", "User lives in Hanoi."}}
	b := NewInstructionBuilder(ws, tools.NewToolList(constTool("shell", "")), mem, 0, "Be brief.")

	got := b.Build(context.Background(), "what should I drink?").Text
	for _, want := range []string{
		"You are CORE. An advanced autonomous AI.",
		"RELEVANT LONG-TERM MEMORIES:\nUser likes tea.\nUser lives in Hanoi.",
		"TOOLS AVAILABLE:\n- shell: test tool shell",
		"1. If you learn a new fact about the user, SAVE it",
		"Be brief.",
		"Answer in French.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("instruction missing %q:\n%s", want, got)
		}
	}
	if mem.query != "what should I drink?" || mem.count != defaultRecallCount {
		t.Errorf("recall query=%q count=%d", mem.query, mem.count)
	}
}

func TestInstruction_RecallFailureSaysNone(t *testing.T) {
	b := NewInstructionBuilder(t.TempDir(), nil, &recallMemory{err: errors.New("offline")}, 2, "")
	if got := b.Build(context.Background(), "q").Text; !strings.Contains(got, "RELEVANT LONG-TERM MEMORIES:\nNone") {
		t.Errorf("instruction = %s", got)
	}
}

// ─── Agent ─────────────────────────────────────────────────────────────────

func TestAsk_PersistsEveryMessage(t *testing.T) {
	p := &scriptedProvider{replies: []reply{
		calls(schema.ToolCallRequest{ID: "c1", Name: "list_directory"}),
		text("Two files."),
	}}
	a, store := newTestAgent(t, p, nil, constTool("list_directory", "[F] a\n[F] b"))

	res, err := a.Ask(context.Background(), "s1", "list files", nil)
	if err != nil || res.Text != "Two files." {
		t.Fatalf("res = %+v err = %v", res, err)
	}
	conv, _ := store.Load(context.Background(), "s1")
	if conv.Len() != 4 {
		t.Fatalf("stored %d messages", conv.Len())
	}
	for _, m := range conv.Messages {
		if m.Kind() == schema.KindInstruction {
			t.Error("instruction was persisted")
		}
	}

	// The next turn resumes from the stored history.
	p.replies = []reply{text("Still two.")}
	if _, err := a.Ask(context.Background(), "s1", "again?", nil); err != nil {
		t.Fatal(err)
	}
	last := p.requests[len(p.requests)-1]
	if len(last) != 1+4+1 {
		t.Errorf("second turn sent %d messages", len(last))
	}
}

func TestAsk_RepairsInterruptedCalls(t *testing.T) {
	p := &scriptedProvider{replies: []reply{text("ok")}}
	a, store := newTestAgent(t, p, nil)
	ctx := context.Background()
	_ = store.Append(ctx, "s1", schema.NewUserMessage("run it"))
	_ = store.Append(ctx, "s1", schema.NewAssistantMessage(nil, []schema.ToolCall{{ID: "c9", Name: "shell"}}, nil))

	if _, err := a.Ask(ctx, "s1", "hello?", nil); err != nil {
		t.Fatal(err)
	}
	conv, _ := store.Load(ctx, "s1")
	tr, ok := conv.Messages[2].(schema.ToolResult)
	if !ok || tr.ToolCallID != "c9" || tr.Content != InterruptedToolText {
		t.Errorf("repair = %#v", conv.Messages[2])
	}
	if err := conv.CheckPairing(); err != nil {
		t.Error(err)
	}
}

func TestAsk_CancelledStillPersistsUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a, store := newTestAgent(t, &scriptedProvider{}, nil)
	if _, err := a.Ask(ctx, "s1", "hi", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	conv, _ := store.Load(context.Background(), "s1")
	if conv.Len() != 1 {
		t.Errorf("stored %d messages", conv.Len())
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == b || !strings.HasPrefix(a, "session_") || len(a) != len("session_")+12 {
		t.Errorf("ids = %q %q", a, b)
	}
}

// ─── Session locks ─────────────────────────────────────────────────────────

func TestSessionLock_SerialisesAndIsReleased(t *testing.T) {
	a, _ := newTestAgent(t, &scriptedProvider{}, nil)

	release := a.lockSession("s1")
	acquired := make(chan struct{})
	done := make(chan struct{})
	go func() {
		r := a.lockSession("s1")
		close(acquired)
		r()
		close(done)
	}()

	select {
	case <-acquired:
		t.Fatal("second turn entered while the session was held")
	case <-time.After(50 * time.Millisecond):
	}
	if n := a.activeLocks(); n != 1 {
		t.Errorf("active locks = %d, want 1", n)
	}

	release()
	<-done
	if n := a.activeLocks(); n != 0 {
		t.Errorf("active locks after release = %d, want 0", n)
	}
}

func TestAsk_FreshSessionsLeaveNoLocks(t *testing.T) {
	p := &scriptedProvider{}
	a, _ := newTestAgent(t, p, nil)
	for i := 0; i < 5; i++ {
		p.replies = []reply{text("hi")}
		if _, err := a.Ask(context.Background(), NewSessionID(), "hello", nil); err != nil {
			t.Fatal(err)
		}
	}
	if n := a.activeLocks(); n != 0 {
		t.Errorf("active locks = %d, want 0", n)
	}
}
