package schema

import "fmt"

// Conversation is the ordered, append-only message history of one session.
type Conversation struct {
	Messages []Message
}

// NewConversation returns a Conversation holding a copy of msgs.
func NewConversation(msgs ...Message) Conversation {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return Conversation{Messages: out}
}

// Append adds msg to the end of the conversation.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
}

func (c Conversation) Len() int { return len(c.Messages) }

// Clone returns a copy with an independent backing slice.
func (c Conversation) Clone() Conversation {
	return NewConversation(c.Messages...)
}

// PendingToolCalls returns the calls of the trailing assistant message that
// have not been answered yet. It is empty for a consistent conversation.
func (c Conversation) PendingToolCalls() []ToolCall {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		am, ok := c.Messages[i].(AssistantMessage)
		if !ok {
			continue
		}
		answered := map[string]bool{}
		for _, m := range c.Messages[i+1:] {
			if tr, ok := m.(ToolResult); ok {
				answered[tr.ToolCallID] = true
			}
		}
		var pending []ToolCall
		for _, tc := range am.ToolCalls {
			if !answered[tc.ID] {
				pending = append(pending, tc)
			}
		}
		return pending
	}
	return nil
}

// CheckPairing verifies that every assistant message with N tool calls is
// followed by exactly N tool results in call order.
func (c Conversation) CheckPairing() error {
	for i := 0; i < len(c.Messages); i++ {
		am, ok := c.Messages[i].(AssistantMessage)
		if !ok || !am.HasToolCalls() {
			continue
		}
		for j, tc := range am.ToolCalls {
			k := i + 1 + j
			if k >= len(c.Messages) {
				return fmt.Errorf("message %d: tool call %q has no result", i, tc.ID)
			}
			tr, ok := c.Messages[k].(ToolResult)
			if !ok {
				return fmt.Errorf("message %d: expected result for %q, got %s", k, tc.ID, c.Messages[k].Kind())
			}
			if tr.ToolCallID != tc.ID {
				return fmt.Errorf("message %d: result id %q does not match call %q", k, tr.ToolCallID, tc.ID)
			}
		}
		i += len(am.ToolCalls)
	}
	return nil
}
