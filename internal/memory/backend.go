package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// FileBackend keeps a collection as one JSON array on disk. Every Put
// rewrites the file through a temp file and rename.
type FileBackend struct {
	path    string
	mu      sync.Mutex
	records []Record
}

// NewFileBackend loads path if it exists.
func NewFileBackend(path string) (*FileBackend, error) {
	b := &FileBackend{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return b, nil
	case err != nil:
		return nil, fmt.Errorf("read memory file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(data, &b.records); err != nil {
		return nil, fmt.Errorf("parse memory file %s: %w", path, err)
	}
	return b, nil
}

func (b *FileBackend) Put(_ context.Context, r Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := append(append([]Record(nil), b.records...), r)
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	b.records = next
	return nil
}

func (b *FileBackend) All(context.Context) ([]Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Record(nil), b.records...), nil
}

func (b *FileBackend) Close() error { return nil }

// RedisBackend stores a collection in one hash, keyed by record id:
//
//	<prefix>:memory:<collection>  HASH id -> JSON record
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend takes ownership of client.
func NewRedisBackend(client *redis.Client, prefix, collection string) *RedisBackend {
	if prefix == "" {
		prefix = "core"
	}
	return &RedisBackend{
		client: client,
		key:    strings.TrimSuffix(prefix, ":") + ":memory:" + collection,
	}
}

func (b *RedisBackend) Put(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := b.client.HSet(ctx, b.key, r.ID, data).Err(); err != nil {
		return fmt.Errorf("store memory: %w", err)
	}
	return nil
}

func (b *RedisBackend) All(ctx context.Context) ([]Record, error) {
	fields, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	out := make([]Record, 0, len(fields))
	for id, raw := range fields {
		var r Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("memory %s: %w", id, err)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (b *RedisBackend) Close() error { return b.client.Close() }
