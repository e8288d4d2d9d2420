package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreagent/core/internal/schema"
)

const defaultRecallCount = 2

type saveMemoryInput struct {
	Text   string `json:"text" jsonschema_description:"The fact to remember, written as a complete sentence"`
	Source string `json:"source,omitempty" jsonschema_description:"Where the fact came from (default: user)"`
}

var saveMemorySchema = paramsSchema[saveMemoryInput]()

// SaveMemoryTool stores a fact in long-term memory.
type SaveMemoryTool struct {
	store schema.MemoryStore
}

// NewSaveMemoryTool creates a SaveMemoryTool backed by the given MemoryStore.
func NewSaveMemoryTool(store schema.MemoryStore) *SaveMemoryTool {
	return &SaveMemoryTool{store: store}
}

func (t *SaveMemoryTool) Name() string { return string(ToolSaveMemory) }
func (t *SaveMemoryTool) Description() string {
	return "Save an important fact about the user or the task to long-term memory."
}
func (t *SaveMemoryTool) Parameters() json.RawMessage { return saveMemorySchema }

func (t *SaveMemoryTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	in, err := decodeArgs[saveMemoryInput](args)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "Error: text is required", nil
	}
	if in.Source == "" {
		in.Source = "user"
	}
	if err := t.store.Save(ctx, text, in.Source); err != nil {
		slog.Warn("failed to save memory", "err", err)
		return fmt.Sprintf("Error: could not save memory: %v", err), nil
	}
	return "Memory saved.", nil
}

type recallMemoryInput struct {
	Query string `json:"query" jsonschema_description:"What to look up in long-term memory"`
	Count int    `json:"count,omitempty" jsonschema_description:"How many memories to return (default 2)"`
}

var recallMemorySchema = paramsSchema[recallMemoryInput]()

// RecallMemoryTool searches long-term memory by meaning.
type RecallMemoryTool struct {
	store schema.MemoryStore
}

func NewRecallMemoryTool(store schema.MemoryStore) *RecallMemoryTool {
	return &RecallMemoryTool{store: store}
}

func (t *RecallMemoryTool) Name() string { return string(ToolRecallMemory) }
func (t *RecallMemoryTool) Description() string {
	return "Search long-term memory for facts related to a query."
}
func (t *RecallMemoryTool) Parameters() json.RawMessage { return recallMemorySchema }

func (t *RecallMemoryTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	in, err := decodeArgs[recallMemoryInput](args)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if strings.TrimSpace(in.Query) == "" {
		return "Error: query is required", nil
	}
	if in.Count <= 0 {
		in.Count = defaultRecallCount
	}
	found, err := t.store.Recall(ctx, in.Query, in.Count)
	if err != nil {
		return fmt.Sprintf("Error: could not search memory: %v", err), nil
	}
	if len(found) == 0 {
		return "No relevant memories found.", nil
	}
	var sb strings.Builder
	for _, m := range found {
		sb.WriteString("- " + m + "\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
