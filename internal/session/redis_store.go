package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coreagent/core/internal/schema"
)

// RedisStore keeps each conversation in a Redis list.
//
//	<prefix>:session:<id>       LIST of wire messages, oldest first
//	<prefix>:session:<id>:meta  HASH created_at, updated_at (unix nanos)
//	<prefix>:sessions           ZSET of ids scored by last update
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions describes the connection for NewRedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return NewRedisStoreFromClient(client, opts.KeyPrefix), nil
}

// NewRedisStoreFromClient wraps an existing client. The store takes ownership
// and closes it on Close.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "core"
	}
	return &RedisStore{client: client, prefix: strings.TrimSuffix(prefix, ":")}
}

func (s *RedisStore) listKey(id string) string { return s.prefix + ":session:" + id }
func (s *RedisStore) metaKey(id string) string { return s.prefix + ":session:" + id + ":meta" }
func (s *RedisStore) indexKey() string         { return s.prefix + ":sessions" }

func (s *RedisStore) Load(ctx context.Context, id string) (schema.Conversation, error) {
	items, err := s.client.LRange(ctx, s.listKey(id), 0, -1).Result()
	if err != nil {
		return schema.Conversation{}, fmt.Errorf("load session %s: %w", id, err)
	}
	conv := schema.NewConversation()
	for i, item := range items {
		msg, err := decodeMessage([]byte(item))
		if err != nil {
			return schema.Conversation{}, fmt.Errorf("session %s entry %d: %w", id, i, err)
		}
		conv.Append(msg)
	}
	return conv, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, msg schema.Message) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	now := time.Now().UnixNano()
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, s.listKey(id), data)
		p.HSetNX(ctx, s.metaKey(id), "created_at", now)
		p.HSet(ctx, s.metaKey(id), "updated_at", now)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(now), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("append session %s: %w", id, err)
	}
	return nil
}

// List returns every stored conversation, most recently updated first.
func (s *RedisStore) List(ctx context.Context) ([]schema.SessionInfo, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]schema.SessionInfo, 0, len(ids))
	for _, id := range ids {
		var (
			meta  *redis.MapStringStringCmd
			count *redis.IntCmd
		)
		_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			meta = p.HGetAll(ctx, s.metaKey(id))
			count = p.LLen(ctx, s.listKey(id))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		m := meta.Val()
		out = append(out, schema.SessionInfo{
			ID:        id,
			CreatedAt: unixNanoField(m["created_at"]),
			UpdatedAt: unixNanoField(m["updated_at"]),
			Messages:  int(count.Val()),
		})
	}
	return out, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func unixNanoField(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
