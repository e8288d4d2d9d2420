// Package session persists conversations.
//
// Three backends share one JSON wire format: JSONL files under the workspace,
// Redis lists, and a MySQL table. Open picks one from configuration.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/coreagent/core/internal/config"
	"github.com/coreagent/core/internal/schema"
)

var (
	_ schema.ConversationStore = (*FileStore)(nil)
	_ schema.ConversationStore = (*RedisStore)(nil)
	_ schema.ConversationStore = (*MySQLStore)(nil)
)

// Open returns the store selected by cfg.Backend. The file backend lives in
// workspace/sessions.
func Open(ctx context.Context, cfg config.SessionConfig, workspace string) (schema.ConversationStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		return NewFileStore(filepath.Join(workspace, "sessions"))
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "mysql":
		return NewMySQLStore(ctx, MySQLOptions{
			DSN:          cfg.MySQL.DSN,
			MaxOpenConns: cfg.MySQL.MaxOpenConns,
			MaxIdleConns: cfg.MySQL.MaxIdleConns,
		})
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}
