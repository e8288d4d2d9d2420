package tools

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/coreagent/core/internal/schema"
)

// ToolList holds a named set of tools and exposes them for LLM calls.
// It is safe for concurrent use; tools may be added while turns run.
type ToolList struct {
	mu    sync.RWMutex
	tools map[string]schema.Tool
}

func NewToolList(ts ...schema.Tool) *ToolList {
	list := ToolList{tools: make(map[string]schema.Tool, len(ts))}
	for _, t := range ts {
		list.tools[t.Name()] = t
	}

	return &list
}

// Get returns the tool with the given name, or nil if not found.
func (r *ToolList) Get(name string) schema.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Add registers a new tool, replacing any existing tool with the same name.
func (r *ToolList) Add(t schema.Tool) schema.Tool {
	r.mu.Lock()
	r.tools[t.Name()] = t
	r.mu.Unlock()

	return t
}

func (r *ToolList) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns the registered tool names in sorted order.
func (r *ToolList) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Tools returns the registered tools sorted by name.
func (r *ToolList) Tools() []schema.Tool {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.Tool, 0, len(names))
	for _, n := range names {
		if t, ok := r.tools[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Definitions returns all tool definitions in OpenAI function-calling format,
// sorted by name so prompts are stable between calls.
func (r *ToolList) Definitions() []map[string]any {
	ts := r.Tools()
	list := make([]map[string]any, 0, len(ts))
	for _, t := range ts {
		var params any
		if err := json.Unmarshal(t.Parameters(), &params); err != nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		list = append(list, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  params,
			},
		})
	}
	return list
}
