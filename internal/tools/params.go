package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// paramsSchema derives the JSON Schema for a tool's input struct. Field
// descriptions come from `jsonschema_description` tags; fields without
// `omitempty` are required.
func paramsSchema[T any]() json.RawMessage {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	s := r.Reflect(&v)
	s.Version = ""
	s.ID = ""

	data, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return data
}

// decodeArgs converts model-supplied arguments into the tool's input struct.
// Numbers arrive as float64 and land in int fields when they are whole.
func decodeArgs[T any](args map[string]any) (T, error) {
	var in T
	if len(args) == 0 {
		return in, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return in, fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("invalid arguments: %w", err)
	}
	return in, nil
}
