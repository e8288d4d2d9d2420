package agent

import (
	"strings"

	"github.com/coreagent/core/internal/schema"
)

const (
	// EmptyToolResultText replaces tool results that produced no output, so
	// the model does not read silence as failure.
	EmptyToolResultText = "Success."

	// DefaultToolName labels tool results that lost their tool name.
	DefaultToolName = "tool"
)

// Normalizer rewrites stored history into the exact sequence handed to the
// model. It is stateless and Normalize(Normalize(x)) == Normalize(x).
type Normalizer struct{}

// Normalize applies the per-message rules and returns a new slice in the
// same order. The input is not modified.
func (n Normalizer) Normalize(msgs []schema.Message) []schema.Message {
	out := make([]schema.Message, 0, len(msgs))
	for _, m := range msgs {
		v := normalizeVisitor{}
		m.Accept(&v)
		out = append(out, v.out)
	}
	return out
}

// Prepare returns the model input for one call: instruction first, then the
// normalized conversation. Instruction messages found in the conversation are
// dropped so only the current one is ever sent.
func (n Normalizer) Prepare(instruction schema.InstructionMessage, conv schema.Conversation) []schema.Message {
	out := make([]schema.Message, 0, conv.Len()+1)
	out = append(out, instruction)
	for _, m := range conv.Messages {
		v := normalizeVisitor{dropInstructions: true}
		m.Accept(&v)
		if v.out != nil {
			out = append(out, v.out)
		}
	}
	return out
}

type normalizeVisitor struct {
	dropInstructions bool
	out              schema.Message
}

func (v *normalizeVisitor) VisitUser(m schema.UserMessage) {
	v.out = schema.UserMessage{Content: schema.ContentText(m.Content)}
}

func (v *normalizeVisitor) VisitAssistant(m schema.AssistantMessage) {
	text := m.Text()
	v.out = schema.AssistantMessage{
		Content:          &text,
		ToolCalls:        m.ToolCalls,
		ReasoningContent: m.ReasoningContent,
	}
}

func (v *normalizeVisitor) VisitToolResult(m schema.ToolResult) {
	// Decide on the rendered text: image-only blocks or a nil RawMessage
	// are non-empty values that still render as "".
	text := schema.ContentText(m.Content)
	if schema.IsEmptyContent(m.Content) || strings.TrimSpace(text) == "" {
		text = EmptyToolResultText
	}
	name := m.Name
	if name == "" {
		name = DefaultToolName
	}
	v.out = schema.ToolResult{ToolCallID: m.ToolCallID, Name: name, Content: text}
}

func (v *normalizeVisitor) VisitInstruction(m schema.InstructionMessage) {
	if v.dropInstructions {
		v.out = nil
		return
	}
	v.out = m
}
