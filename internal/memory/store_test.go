package memory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/coreagent/core/internal/config"
)

func newFileStore(t *testing.T) *VectorStore {
	t.Helper()
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "memory", "knowledge.json"))
	if err != nil {
		t.Fatal(err)
	}
	return NewVectorStore(NewHashEmbedder(128), b)
}

func saveAll(t *testing.T, s *VectorStore, texts ...string) {
	t.Helper()
	for _, text := range texts {
		if err := s.Save(context.Background(), text, "user"); err != nil {
			t.Fatalf("Save(%q): %v", text, err)
		}
	}
}

// ─── VectorStore ───────────────────────────────────────────────────────────

func TestRecall_RanksBySimilarity(t *testing.T) {
	s := newFileStore(t)
	saveAll(t, s,
		"The user's favourite drink is green tea",
		"The user lives in Hanoi",
		"The user's dog is called Mochi",
	)
	got, err := s.Recall(context.Background(), "what drink does the user like, tea?", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "The user's favourite drink is green tea" {
		t.Errorf("Recall = %q", got)
	}
}

func TestRecall_EmptyAndZeroCount(t *testing.T) {
	s := newFileStore(t)
	if got, err := s.Recall(context.Background(), "anything", 2); err != nil || got != nil {
		t.Errorf("empty store = %v, %v", got, err)
	}
	saveAll(t, s, "a fact")
	if got, _ := s.Recall(context.Background(), "fact", 0); got != nil {
		t.Errorf("count 0 = %v", got)
	}
	if got, _ := s.Recall(context.Background(), "fact", 10); len(got) != 1 {
		t.Errorf("count beyond size = %v", got)
	}
}

func TestSave_RejectsEmpty(t *testing.T) {
	if err := newFileStore(t).Save(context.Background(), "  ", "user"); err == nil {
		t.Fatal("expected error")
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func TestSave_EmbedderError(t *testing.T) {
	b, _ := NewFileBackend(filepath.Join(t.TempDir(), "m.json"))
	s := NewVectorStore(failingEmbedder{}, b)
	if err := s.Save(context.Background(), "x", "user"); err == nil {
		t.Fatal("expected embed error")
	}
}

// ─── Backends ──────────────────────────────────────────────────────────────

func TestFileBackend_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	b, _ := NewFileBackend(path)
	s := NewVectorStore(NewHashEmbedder(64), b)
	saveAll(t, s, "one", "two")

	again, err := NewFileBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	recs, _ := again.All(context.Background())
	if len(recs) != 2 || recs[0].Text != "one" || recs[0].ID == "" || recs[1].Source != "user" {
		t.Errorf("records = %+v", recs)
	}
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	b := NewRedisBackend(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", "knowledge")
	defer b.Close()
	s := NewVectorStore(NewHashEmbedder(128), b)
	saveAll(t, s, "The user prefers dark mode", "The meeting is on Friday")

	if !mr.Exists("test:memory:knowledge") {
		t.Fatal("hash key missing")
	}
	got, err := s.Recall(context.Background(), "dark mode", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "The user prefers dark mode" {
		t.Errorf("Recall = %q", got)
	}
}

// ─── Embedders ─────────────────────────────────────────────────────────────

func TestHashEmbedder_Normalised(t *testing.T) {
	vecs, _ := NewHashEmbedder(32).Embed(context.Background(), []string{"Hello, hello world", ""})
	if len(vecs) != 2 || len(vecs[0]) != 32 {
		t.Fatalf("vecs = %v", vecs)
	}
	if c := cosine(vecs[0], vecs[0]); c < 0.999 {
		t.Errorf("self similarity = %f", c)
	}
	if c := cosine(vecs[1], vecs[0]); c != 0 {
		t.Errorf("empty text similarity = %f", c)
	}
}

func TestHTTPEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" || r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "text-embedding-004" || len(req.Input) != 2 {
			t.Errorf("body = %+v", req)
		}
		// Out of order on purpose.
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	vecs, err := NewHTTPEmbedder("k", srv.URL+"/v1/", "text-embedding-004").
		Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vecs = %v", vecs)
	}
}

func TestHTTPEmbedder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()
	if _, err := NewHTTPEmbedder("", srv.URL, "m").Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

// ─── Open ──────────────────────────────────────────────────────────────────

func TestOpen_HashFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Workspace = t.TempDir()
	cfg.Memory.Embedding.Provider = "hash"
	s, err := Open(context.Background(), &cfg)
	if err != nil {
		t.Fatal(err)
	}
	saveAll(t, s, "remember me")
	if got, _ := s.Recall(context.Background(), "remember", 1); len(got) != 1 {
		t.Errorf("Recall = %v", got)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Memory.Backend = "qdrant"
	cfg.Memory.Embedding.Provider = "hash"
	if _, err := Open(context.Background(), &cfg); err == nil {
		t.Fatal("expected error")
	}
}
