package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/coreagent/core/internal/schema"
)

const createMessagesTable = `CREATE TABLE IF NOT EXISTS conversation_messages (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        session_id VARCHAR(128) NOT NULL,
        role VARCHAR(16) NOT NULL,
        payload MEDIUMTEXT NOT NULL,
        created_at BIGINT NOT NULL,
        INDEX idx_conversation_session (session_id, id)
)`

// MySQLStore keeps every message as one row, ordered by an auto-increment id.
type MySQLStore struct {
	db *sql.DB
}

// MySQLOptions configures the connection pool for NewMySQLStore.
type MySQLOptions struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// NewMySQLStore opens the database, checks it is reachable and creates the
// messages table if needed.
func NewMySQLStore(ctx context.Context, opts MySQLOptions) (*MySQLStore, error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}
	db, err := sql.Open("mysql", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	s, err := NewMySQLStoreFromDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewMySQLStoreFromDB wraps an open handle and ensures the schema exists.
// The store takes ownership of db.
func NewMySQLStoreFromDB(ctx context.Context, db *sql.DB) (*MySQLStore, error) {
	if _, err := db.ExecContext(ctx, createMessagesTable); err != nil {
		return nil, fmt.Errorf("create conversation_messages: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Load(ctx context.Context, id string) (schema.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM conversation_messages WHERE session_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return schema.Conversation{}, fmt.Errorf("load session %s: %w", id, err)
	}
	defer rows.Close()

	conv := schema.NewConversation()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return schema.Conversation{}, fmt.Errorf("scan session %s: %w", id, err)
		}
		msg, err := decodeMessage([]byte(payload))
		if err != nil {
			return schema.Conversation{}, fmt.Errorf("session %s: %w", id, err)
		}
		conv.Append(msg)
	}
	if err := rows.Err(); err != nil {
		return schema.Conversation{}, fmt.Errorf("load session %s: %w", id, err)
	}
	return conv, nil
}

func (s *MySQLStore) Append(ctx context.Context, id string, msg schema.Message) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversation_messages (session_id, role, payload, created_at) VALUES (?, ?, ?, ?)`,
		id, string(msg.Kind()), string(data), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("append session %s: %w", id, err)
	}
	return nil
}

// List returns every stored conversation, most recently updated first.
func (s *MySQLStore) List(ctx context.Context) ([]schema.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, MIN(created_at), MAX(created_at), COUNT(*)
        FROM conversation_messages GROUP BY session_id ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []schema.SessionInfo
	for rows.Next() {
		var (
			info             schema.SessionInfo
			created, updated int64
		)
		if err := rows.Scan(&info.ID, &created, &updated, &info.Messages); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		info.CreatedAt = time.Unix(0, created)
		info.UpdatedAt = time.Unix(0, updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *MySQLStore) Close() error { return s.db.Close() }
