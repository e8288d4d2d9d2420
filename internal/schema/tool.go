package schema

import (
	"context"
	"encoding/json"
)

// Tool is one capability the model can invoke by name.
//
// Execute returns the text handed back to the model. Recoverable failures
// are reported as text starting with "Error:"; a returned error is converted
// to such text by the turn loop, and so is a panic.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON Schema object describing the arguments.
	Parameters() json.RawMessage
	Execute(ctx context.Context, args map[string]any) (string, error)
}
