package schema

import "context"

// MemoryStore is long-term vector memory.
type MemoryStore interface {
	Save(ctx context.Context, text, source string) error
	// Recall returns up to count snippets, most relevant first.
	Recall(ctx context.Context, query string, count int) ([]string, error)
}
