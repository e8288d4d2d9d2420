package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/coreagent/core/internal/config"
	"github.com/coreagent/core/internal/providers"
)

// Open builds the VectorStore described by cfg.Memory.
func Open(ctx context.Context, cfg *config.Config) (*VectorStore, error) {
	mc := cfg.Memory
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	var backend Backend
	switch strings.ToLower(mc.Backend) {
	case "", "file":
		backend, err = NewFileBackend(cfg.MemoryPath())
		if err != nil {
			return nil, err
		}
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     mc.Redis.Addr,
			Password: mc.Redis.Password,
			DB:       mc.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect memory redis %s: %w", mc.Redis.Addr, err)
		}
		backend = NewRedisBackend(client, mc.Redis.KeyPrefix, mc.Collection)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", mc.Backend)
	}
	return NewVectorStore(embedder, backend), nil
}

func newEmbedder(cfg *config.Config) (Embedder, error) {
	e := cfg.Memory.Embedding
	if strings.EqualFold(e.Provider, "hash") {
		return NewHashEmbedder(e.Dimensions), nil
	}
	apiKey, apiBase := cfg.EmbeddingCredentials()
	if apiBase == "" {
		if spec := providers.FindByName(e.Provider); spec != nil {
			apiBase = spec.DefaultAPIBase
		}
	}
	if apiBase == "" {
		return nil, fmt.Errorf("no embeddings endpoint for provider %q", e.Provider)
	}
	return NewHTTPEmbedder(apiKey, apiBase, e.Model), nil
}
