package schema

import (
	"encoding/json"
	"time"
)

// Kind names a Message variant. The values double as wire roles.
type Kind string

const (
	KindUser        Kind = "user"
	KindAssistant   Kind = "assistant"
	KindToolResult  Kind = "tool"
	KindInstruction Kind = "system"
)

// Message is one entry in a Conversation.
//
// The set of variants is closed: UserMessage, AssistantMessage, ToolResult and
// InstructionMessage. Code that needs to tell them apart implements
// MessageVisitor instead of switching on Kind, so a new variant cannot be
// added without every visitor handling it.
type Message interface {
	Kind() Kind
	Accept(v MessageVisitor)
	isMessage()
}

// MessageVisitor dispatches over every Message variant.
type MessageVisitor interface {
	VisitUser(m UserMessage)
	VisitAssistant(m AssistantMessage)
	VisitToolResult(m ToolResult)
	VisitInstruction(m InstructionMessage)
}

// ContentBlock is a single block in a multimodal user message.
type ContentBlock struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL map[string]any `json:"image_url,omitempty"`
}

// ToolCall represents one function call in an assistant message.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToWireMap serialises a ToolCall into the OpenAI wire-format map.
func (tc ToolCall) ToWireMap() map[string]any {
	args := tc.Arguments
	if args == nil {
		args = map[string]any{}
	}
	argsJSON, _ := json.Marshal(args)
	return map[string]any{
		"id":   tc.ID,
		"type": "function",
		"function": map[string]any{
			"name":      tc.Name,
			"arguments": string(argsJSON),
		},
	}
}

// UserMessage carries what the user typed.
// Content is a string or []ContentBlock.
type UserMessage struct {
	Content   any
	CreatedAt time.Time
}

// AssistantMessage is one model reply. Content is nil when the model only
// requested tools.
type AssistantMessage struct {
	Content          *string
	ToolCalls        []ToolCall
	ReasoningContent *string
	CreatedAt        time.Time
}

// ToolResult answers exactly one ToolCall. Content is usually a string but
// tools backed by structured APIs may hand back maps or slices.
type ToolResult struct {
	ToolCallID string
	Name       string
	Content    any
	CreatedAt  time.Time
}

// InstructionMessage is the synthesized persona/capabilities block. It is
// rebuilt every turn and never stored.
type InstructionMessage struct {
	Text string
}

func (UserMessage) Kind() Kind        { return KindUser }
func (AssistantMessage) Kind() Kind   { return KindAssistant }
func (ToolResult) Kind() Kind         { return KindToolResult }
func (InstructionMessage) Kind() Kind { return KindInstruction }

func (m UserMessage) Accept(v MessageVisitor)        { v.VisitUser(m) }
func (m AssistantMessage) Accept(v MessageVisitor)   { v.VisitAssistant(m) }
func (m ToolResult) Accept(v MessageVisitor)         { v.VisitToolResult(m) }
func (m InstructionMessage) Accept(v MessageVisitor) { v.VisitInstruction(m) }

func (UserMessage) isMessage()        {}
func (AssistantMessage) isMessage()   {}
func (ToolResult) isMessage()         {}
func (InstructionMessage) isMessage() {}

func NewUserMessage(content any) UserMessage {
	return UserMessage{Content: content, CreatedAt: time.Now()}
}

func NewAssistantMessage(content *string, toolCalls []ToolCall, reasoningContent *string) AssistantMessage {
	return AssistantMessage{
		Content:          content,
		ToolCalls:        toolCalls,
		ReasoningContent: reasoningContent,
		CreatedAt:        time.Now(),
	}
}

// NewAssistantText builds a tool-free assistant message.
func NewAssistantText(text string) AssistantMessage {
	return NewAssistantMessage(&text, nil, nil)
}

func NewToolResult(toolCallID, name string, content any) ToolResult {
	return ToolResult{
		ToolCallID: toolCallID,
		Name:       name,
		Content:    content,
		CreatedAt:  time.Now(),
	}
}

func NewInstructionMessage(text string) InstructionMessage {
	return InstructionMessage{Text: text}
}

// Text returns the assistant text, or "" when absent.
func (m AssistantMessage) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// HasToolCalls reports whether the model asked for at least one tool.
func (m AssistantMessage) HasToolCalls() bool { return len(m.ToolCalls) > 0 }
