package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreagent/core/internal/schema"
	"github.com/coreagent/core/internal/tools"
)

const defaultRecallCount = 2

// workspaceInstructionsFile is appended to the instruction when present.
const workspaceInstructionsFile = "INSTRUCTIONS.md"

// InstructionBuilder assembles the per-turn instruction block: persona,
// available tools, recalled memories and operating rules.
type InstructionBuilder struct {
	workspace   string
	tools       *tools.ToolList
	memory      schema.MemoryStore // may be nil
	recallCount int
	extra       string
}

func NewInstructionBuilder(workspace string, tls *tools.ToolList, memory schema.MemoryStore, recallCount int, extra string) *InstructionBuilder {
	if recallCount <= 0 {
		recallCount = defaultRecallCount
	}
	return &InstructionBuilder{
		workspace:   workspace,
		tools:       tls,
		memory:      memory,
		recallCount: recallCount,
		extra:       strings.TrimSpace(extra),
	}
}

// Build returns the instruction for a turn whose latest user text is query.
func (b *InstructionBuilder) Build(ctx context.Context, query string) schema.InstructionMessage {
	var sb strings.Builder
	sb.WriteString("You are CORE. An advanced autonomous AI.\n\n")

	sb.WriteString("RELEVANT LONG-TERM MEMORIES:\n")
	sb.WriteString(b.recall(ctx, query))
	sb.WriteString("\n\n")

	sb.WriteString("TOOLS AVAILABLE:\n")
	if b.tools != nil {
		for _, t := range b.tools.Tools() {
			fmt.Fprintf(&sb, "- %s: %s\n", t.Name(), firstLine(t.Description()))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("1. If you learn a new fact about the user, SAVE it using the save_memory tool.\n")
	sb.WriteString("2. When browsing, wait for pages to load.\n")
	sb.WriteString("3. Be careful with Shell commands.\n")
	fmt.Fprintf(&sb, "\nYour workspace is at: %s\n", b.workspace)

	if b.extra != "" {
		sb.WriteString("\n" + b.extra + "\n")
	}
	if data, err := os.ReadFile(filepath.Join(b.workspace, workspaceInstructionsFile)); err == nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			sb.WriteString("\n## " + workspaceInstructionsFile + "\n\n" + s + "\n")
		}
	}
	return schema.NewInstructionMessage(strings.TrimRight(sb.String(), "\n"))
}

func (b *InstructionBuilder) recall(ctx context.Context, query string) string {
	if b.memory == nil || strings.TrimSpace(query) == "" {
		return "None"
	}
	memories, err := b.memory.Recall(ctx, query, b.recallCount)
	if err != nil {
		slog.Warn("memory recall failed", "err", err)
		return "None"
	}
	if len(memories) == 0 {
		return "None"
	}
	return strings.Join(memories, "\n")
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return s
}
