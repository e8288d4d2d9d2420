package schema

import (
	"context"
	"time"
)

// SessionInfo describes one stored conversation.
type SessionInfo struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  int
}

// ConversationStore is append-only durable storage keyed by session id.
// Load returns an empty Conversation for an unknown id.
type ConversationStore interface {
	Load(ctx context.Context, sessionID string) (Conversation, error)
	Append(ctx context.Context, sessionID string, msg Message) error
	List(ctx context.Context) ([]SessionInfo, error)
	Close() error
}
