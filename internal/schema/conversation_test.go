package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func assistantWithCalls(ids ...string) AssistantMessage {
	calls := make([]ToolCall, len(ids))
	for i, id := range ids {
		calls[i] = ToolCall{ID: id, Name: "list_directory"}
	}
	return NewAssistantMessage(nil, calls, nil)
}

// ─── Pairing ───────────────────────────────────────────────────────────────

func TestCheckPairing_Consistent(t *testing.T) {
	c := NewConversation(
		NewUserMessage("list files"),
		assistantWithCalls("a", "b"),
		NewToolResult("a", "list_directory", "x"),
		NewToolResult("b", "list_directory", "y"),
		NewAssistantText("done"),
	)
	if err := c.CheckPairing(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := c.PendingToolCalls(); len(p) != 0 {
		t.Errorf("expected no pending calls, got %v", p)
	}
}

func TestCheckPairing_OutOfOrder(t *testing.T) {
	c := NewConversation(
		assistantWithCalls("a", "b"),
		NewToolResult("b", "list_directory", "y"),
		NewToolResult("a", "list_directory", "x"),
	)
	err := c.CheckPairing()
	if err == nil || !strings.Contains(err.Error(), "does not match") {
		t.Fatalf("expected order mismatch, got %v", err)
	}
}

func TestCheckPairing_Missing(t *testing.T) {
	c := NewConversation(
		assistantWithCalls("a", "b"),
		NewToolResult("a", "list_directory", "x"),
	)
	if err := c.CheckPairing(); err == nil {
		t.Fatal("expected error for missing result")
	}
	pending := c.PendingToolCalls()
	if len(pending) != 1 || pending[0].ID != "b" {
		t.Errorf("expected pending [b], got %v", pending)
	}
}

// ─── Content ───────────────────────────────────────────────────────────────

func TestContentText(t *testing.T) {
	s := "hi"
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"plain", "plain"},
		{&s, "hi"},
		{[]ContentBlock{{Type: "text", Text: "a"}, {Type: "image_url"}, {Type: "text", Text: "b"}}, "a\nb"},
		{map[string]any{"ok": true}, `{"ok":true}`},
		{[]string{"x", "y"}, `["x","y"]`},
	}
	for _, tc := range cases {
		if got := ContentText(tc.in); got != tc.want {
			t.Errorf("ContentText(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsEmptyContent(t *testing.T) {
	for _, v := range []any{nil, "", "   ", map[string]any{}, []any{}, json.RawMessage(nil), json.RawMessage(" ")} {
		if !IsEmptyContent(v) {
			t.Errorf("expected %#v to be empty", v)
		}
	}
	for _, v := range []any{"x", map[string]any{"a": 1}, 0, json.RawMessage(`{}`)} {
		if IsEmptyContent(v) {
			t.Errorf("expected %#v to be non-empty", v)
		}
	}
}
