package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeMemory struct {
	saved  []string
	source string
	recall []string
	err    error
	count  int
}

func (m *fakeMemory) Save(_ context.Context, text, source string) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, text)
	m.source = source
	return nil
}

func (m *fakeMemory) Recall(_ context.Context, query string, count int) ([]string, error) {
	m.count = count
	return m.recall, m.err
}

func TestSaveMemory(t *testing.T) {
	m := &fakeMemory{}
	out := run(t, NewSaveMemoryTool(m), map[string]any{"text": "  User likes tea.  "})
	if out != "Memory saved." {
		t.Errorf("out = %q", out)
	}
	if len(m.saved) != 1 || m.saved[0] != "User likes tea." || m.source != "user" {
		t.Errorf("saved = %v source = %q", m.saved, m.source)
	}
}

func TestSaveMemory_Errors(t *testing.T) {
	out := run(t, NewSaveMemoryTool(&fakeMemory{}), map[string]any{"text": " "})
	if out != "Error: text is required" {
		t.Errorf("empty text = %q", out)
	}
	out = run(t, NewSaveMemoryTool(&fakeMemory{err: errors.New("disk full")}), map[string]any{"text": "x"})
	if !strings.Contains(out, "disk full") {
		t.Errorf("store error = %q", out)
	}
}

func TestRecallMemory(t *testing.T) {
	m := &fakeMemory{recall: []string{"User likes tea.", "User lives in Hanoi."}}
	out := run(t, NewRecallMemoryTool(m), map[string]any{"query": "drinks"})
	if out != "- User likes tea.\n- User lives in Hanoi." {
		t.Errorf("out = %q", out)
	}
	if m.count != 2 {
		t.Errorf("default count = %d", m.count)
	}

	m.recall = nil
	if out := run(t, NewRecallMemoryTool(m), map[string]any{"query": "x", "count": 5.0}); out != "No relevant memories found." {
		t.Errorf("empty = %q", out)
	}
	if m.count != 5 {
		t.Errorf("count = %d", m.count)
	}
}
