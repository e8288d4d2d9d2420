package agent

import "github.com/coreagent/core/internal/schema"

// Observer receives the externally visible events of a turn.
// Calls happen on the goroutine running the turn, in event order.
type Observer interface {
	// ToolInvoked fires once per call when the loop enters EXECUTING_TOOLS.
	ToolInvoked(call schema.ToolCall)
	// ModelFailed fires before the backoff wait of a failed model call.
	ModelFailed(err error)
	// FinalAnswer fires when the turn reaches DONE.
	FinalAnswer(text string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnTool        func(schema.ToolCall)
	OnModelFailed func(error)
	OnAnswer      func(string)
}

func (o ObserverFuncs) ToolInvoked(call schema.ToolCall) {
	if o.OnTool != nil {
		o.OnTool(call)
	}
}

func (o ObserverFuncs) ModelFailed(err error) {
	if o.OnModelFailed != nil {
		o.OnModelFailed(err)
	}
}

func (o ObserverFuncs) FinalAnswer(text string) {
	if o.OnAnswer != nil {
		o.OnAnswer(text)
	}
}
