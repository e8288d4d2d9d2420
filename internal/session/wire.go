package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coreagent/core/internal/schema"
)

// wireMessage is the stored JSON representation of a message. Every backend
// uses it, so a conversation can be exported from one and read by another.
type wireMessage struct {
	Role             string           `json:"role"`
	Content          any              `json:"content"`
	ToolCalls        []map[string]any `json:"tool_calls,omitempty"`
	ToolCallID       string           `json:"tool_call_id,omitempty"`
	Name             string           `json:"name,omitempty"`
	ReasoningContent *string          `json:"reasoning_content,omitempty"`
	Timestamp        string           `json:"timestamp,omitempty"`
}

// encodeMessage serialises one message as a single JSON line (no newline).
func encodeMessage(m schema.Message) ([]byte, error) {
	v := wireVisitor{}
	m.Accept(&v)
	data, err := json.Marshal(v.out)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.Kind(), err)
	}
	return data, nil
}

// decodeMessage is the inverse of encodeMessage.
func decodeMessage(data []byte) (schema.Message, error) {
	var w struct {
		wireMessage
		Content   json.RawMessage `json:"content"`
		ToolCalls []struct {
			ID       string `json:"id"`
			Function struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	var ts time.Time
	if w.Timestamp != "" {
		ts, _ = time.Parse(time.RFC3339Nano, w.Timestamp)
	}

	switch schema.Kind(w.Role) {
	case schema.KindUser:
		return schema.UserMessage{Content: decodeContent(w.Content), CreatedAt: ts}, nil

	case schema.KindAssistant:
		var content *string
		if c := decodeContent(w.Content); c != nil {
			s := schema.ContentText(c)
			content = &s
		}
		var calls []schema.ToolCall
		for _, tc := range w.ToolCalls {
			args := map[string]any{}
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					return nil, fmt.Errorf("decode arguments of call %s: %w", tc.ID, err)
				}
			}
			calls = append(calls, schema.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
		}
		return schema.AssistantMessage{
			Content:          content,
			ToolCalls:        calls,
			ReasoningContent: w.ReasoningContent,
			CreatedAt:        ts,
		}, nil

	case schema.KindToolResult:
		return schema.ToolResult{ToolCallID: w.ToolCallID, Name: w.Name, Content: decodeContent(w.Content), CreatedAt: ts}, nil

	case schema.KindInstruction:
		return schema.InstructionMessage{Text: schema.ContentText(decodeContent(w.Content))}, nil
	}
	return nil, fmt.Errorf("decode message: unknown role %q", w.Role)
}

// decodeContent restores string and content-block payloads to their typed
// form. Anything else is returned as generic JSON.
func decodeContent(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var blocks []schema.ContentBlock
	if json.Unmarshal(raw, &blocks) == nil && len(blocks) > 0 && blocks[0].Type != "" {
		return blocks
	}
	var v any
	_ = json.Unmarshal(raw, &v)
	return v
}

type wireVisitor struct {
	out wireMessage
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (v *wireVisitor) VisitUser(m schema.UserMessage) {
	v.out = wireMessage{Role: string(schema.KindUser), Content: m.Content, Timestamp: stamp(m.CreatedAt)}
}

func (v *wireVisitor) VisitAssistant(m schema.AssistantMessage) {
	v.out = wireMessage{
		Role:             string(schema.KindAssistant),
		ReasoningContent: m.ReasoningContent,
		Timestamp:        stamp(m.CreatedAt),
	}
	if m.Content != nil {
		v.out.Content = *m.Content
	}
	for _, tc := range m.ToolCalls {
		v.out.ToolCalls = append(v.out.ToolCalls, tc.ToWireMap())
	}
}

func (v *wireVisitor) VisitToolResult(m schema.ToolResult) {
	v.out = wireMessage{
		Role:       string(schema.KindToolResult),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
		Timestamp:  stamp(m.CreatedAt),
	}
}

func (v *wireVisitor) VisitInstruction(m schema.InstructionMessage) {
	v.out = wireMessage{Role: string(schema.KindInstruction), Content: m.Text}
}
