package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coreagent/core/internal/schema"
)

// scriptedProvider returns its replies in order and records every request.
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []reply
	requests [][]schema.Message
}

type reply struct {
	resp schema.LLMResponse
	err  error
}

func text(s string) reply { return reply{resp: schema.LLMResponse{Content: &s}} }

func calls(cs ...schema.ToolCallRequest) reply {
	return reply{resp: schema.LLMResponse{ToolCalls: cs, FinishReason: "tool_calls"}}
}

func fail(msg string) reply { return reply{err: errors.New(msg)} }

func (p *scriptedProvider) Chat(_ context.Context, msgs []schema.Message, _ []map[string]any, _ schema.ChatOptions) (schema.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, msgs)
	if len(p.replies) == 0 {
		return schema.LLMResponse{}, errors.New("script exhausted")
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r.resp, r.err
}

func (p *scriptedProvider) DefaultModel() string { return "fake" }

// funcTool is a schema.Tool backed by a function.
type funcTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (string, error)
}

func (t funcTool) Name() string                { return t.name }
func (t funcTool) Description() string         { return "test tool " + t.name }
func (t funcTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object","properties":{}}`) }
func (t funcTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return t.fn(ctx, args)
}

func constTool(name, out string) funcTool {
	return funcTool{name: name, fn: func(context.Context, map[string]any) (string, error) { return out, nil }}
}

// memStore is an in-memory schema.ConversationStore.
type memStore struct {
	mu    sync.Mutex
	convs map[string][]schema.Message
}

func newMemStore() *memStore { return &memStore{convs: map[string][]schema.Message{}} }

func (s *memStore) Load(_ context.Context, id string) (schema.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return schema.NewConversation(s.convs[id]...), nil
}

func (s *memStore) Append(_ context.Context, id string, m schema.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[id] = append(s.convs[id], m)
	return nil
}

func (s *memStore) List(context.Context) ([]schema.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schema.SessionInfo
	for id, msgs := range s.convs {
		out = append(out, schema.SessionInfo{ID: id, Messages: len(msgs), UpdatedAt: time.Now()})
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

// recallMemory is a schema.MemoryStore returning fixed snippets.
type recallMemory struct {
	snippets []string
	err      error
	query    string
	count    int
}

func (m *recallMemory) Save(context.Context, string, string) error { return nil }

func (m *recallMemory) Recall(_ context.Context, query string, count int) ([]string, error) {
	m.query, m.count = query, count
	return m.snippets, m.err
}

// events records Observer callbacks.
type events struct {
	tools    []string
	failures []error
	answers  []string
}

func (e *events) observer() Observer {
	return ObserverFuncs{
		OnTool:        func(tc schema.ToolCall) { e.tools = append(e.tools, tc.Name) },
		OnModelFailed: func(err error) { e.failures = append(e.failures, err) },
		OnAnswer:      func(s string) { e.answers = append(e.answers, s) },
	}
}
