package agent

import "errors"

var (
	// ErrModelCall wraps any failure of the model collaborator. The turn
	// ends with CoolingDownText rather than retrying.
	ErrModelCall = errors.New("model call failed")

	// ErrUnknownTool is reported to the model when it names a tool that is
	// not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolPanic is reported to the model when a tool panics.
	ErrToolPanic = errors.New("tool panicked")

	// ErrTurnBudgetExceeded is returned when a turn runs more tool cycles
	// than AgentSettings.MaxIter allows.
	ErrTurnBudgetExceeded = errors.New("turn budget exceeded")
)

const (
	// CoolingDownText is the placeholder answer after a failed model call.
	CoolingDownText = "Cooling down."

	// BudgetExceededText is the placeholder answer when the cycle cap is hit.
	BudgetExceededText = "I've reached the maximum number of tool iterations without a final answer."

	// InterruptedToolText answers tool calls that a previous process left
	// without results.
	InterruptedToolText = "Error: interrupted before the tool finished"
)
