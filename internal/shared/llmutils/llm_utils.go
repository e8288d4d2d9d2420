package llmutils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/coreagent/core/internal/schema"
)

var (
	reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)
	reFence = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*\\n?(.*?)\\n?\\s*```\\s*$")
)

// Truncate shortens a string to at most n bytes, adding "..." if it was
// truncated. The cut backs off to a rune boundary so the result stays valid
// UTF-8.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n < 0 {
		n = 0
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// StripThink removes <think>…</think> blocks that some models embed.
func StripThink(s string) string {
	return strings.TrimSpace(reThink.ReplaceAllString(s, ""))
}

// StripCodeFences unwraps a string the model wrapped in a markdown code block.
func StripCodeFences(s string) string {
	if m := reFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// StringOrDefault returns s if it's not empty, or def if s is empty.
func StringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// FormatArgs renders tool arguments as key=value pairs in key order,
// e.g. `path=".", recursive=true`. Long values are shortened.
func FormatArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var val string
		switch v := args[k].(type) {
		case string:
			if len(v) > 40 {
				v = strings.TrimSuffix(Truncate(v, 40), "...") + "…"
			}
			val = fmt.Sprintf("%q", v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				b = []byte(fmt.Sprint(v))
			}
			val = Truncate(string(b), 40)
		}
		parts = append(parts, k+"="+val)
	}
	return strings.Join(parts, ", ")
}

// ToolHint generates the progress line shown while a tool runs,
// e.g. `Using shell(command="ls")`.
func ToolHint(tc schema.ToolCall) string {
	return fmt.Sprintf("Using %s(%s)", tc.Name, FormatArgs(tc.Arguments))
}
