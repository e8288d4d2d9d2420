// Package cmdutils holds the console formatting shared by the CLI commands.
package cmdutils

import (
	"fmt"
	"io"
)

const Logo = "◆"

// PrintResponse writes the agent's final answer under the banner line.
func PrintResponse(w io.Writer, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(w, "\n%s core\n%s\n\n", Logo, text)
}

// PrintNotice writes an indented progress line, e.g. a tool hint.
func PrintNotice(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  ↳ "+format+"\n", args...)
}

// Mark renders a check result.
func Mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
