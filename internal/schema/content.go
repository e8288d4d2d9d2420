package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentText coerces message content of any shape into text.
// Text blocks are joined with newlines; other structured values are
// JSON-encoded.
func ContentText(content any) string {
	switch c := content.(type) {
	case nil:
		return ""
	case string:
		return c
	case *string:
		if c == nil {
			return ""
		}
		return *c
	case []byte:
		return string(c)
	case []ContentBlock:
		parts := make([]string, 0, len(c))
		for _, b := range c {
			if b.Type == "text" || (b.Type == "" && b.Text != "") {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	case json.RawMessage:
		return string(c)
	}
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprint(content)
	}
	return string(data)
}

// IsEmptyContent reports whether content carries nothing: nil, blank text,
// or an empty collection.
func IsEmptyContent(content any) bool {
	switch c := content.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(c) == ""
	case *string:
		return c == nil || strings.TrimSpace(*c) == ""
	case []byte:
		return len(strings.TrimSpace(string(c))) == 0
	case json.RawMessage:
		return len(strings.TrimSpace(string(c))) == 0
	case []ContentBlock:
		return len(c) == 0
	case map[string]any:
		return len(c) == 0
	case []any:
		return len(c) == 0
	}
	return false
}
