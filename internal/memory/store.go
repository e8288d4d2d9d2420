// Package memory implements long-term vector memory.
//
// A VectorStore embeds each saved snippet and keeps the vector in a Backend.
// Recall embeds the query and ranks every stored record by cosine similarity.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coreagent/core/internal/schema"
)

var _ schema.MemoryStore = (*VectorStore)(nil)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Record is one stored memory.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	Vector    []float32 `json:"vector"`
}

// Backend persists records for one collection.
type Backend interface {
	Put(ctx context.Context, r Record) error
	All(ctx context.Context) ([]Record, error)
	Close() error
}

// VectorStore is a schema.MemoryStore over an Embedder and a Backend.
type VectorStore struct {
	embedder Embedder
	backend  Backend
}

func NewVectorStore(e Embedder, b Backend) *VectorStore {
	return &VectorStore{embedder: e, backend: b}
}

// Save embeds text and stores it. Empty text is rejected.
func (s *VectorStore) Save(ctx context.Context, text, source string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("memory text is empty")
	}
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("embed memory: got %d vectors for 1 text", len(vecs))
	}
	return s.backend.Put(ctx, Record{
		ID:        uuid.NewString(),
		Text:      text,
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Vector:    vecs[0],
	})
}

// Recall returns the texts of the count records closest to query.
func (s *VectorStore) Recall(ctx context.Context, query string, count int) ([]string, error) {
	if count <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	records, err := s.backend.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors for 1 text", len(vecs))
	}
	q := vecs[0]

	type scored struct {
		rec   Record
		score float64
	}
	ranked := make([]scored, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != len(q) {
			continue
		}
		ranked = append(ranked, scored{r, cosine(q, r.Vector)})
	}
	// Ties go to the newer memory.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].rec.CreatedAt.After(ranked[j].rec.CreatedAt)
	})

	out := make([]string, 0, min(count, len(ranked)))
	for _, r := range ranked[:min(count, len(ranked))] {
		out = append(out, r.rec.Text)
	}
	return out, nil
}

func (s *VectorStore) Close() error { return s.backend.Close() }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
