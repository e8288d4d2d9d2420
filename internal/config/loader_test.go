package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Agents.Defaults.Model != def.Agents.Defaults.Model {
		t.Errorf("expected default model %q, got %q", def.Agents.Defaults.Model, cfg.Agents.Defaults.Model)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"agents": map[string]any{
			"defaults": map[string]any{
				"model":     "openai/gpt-4o",
				"maxTokens": 4096,
			},
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agents.Defaults.Model != "openai/gpt-4o" {
		t.Errorf("expected model %q, got %q", "openai/gpt-4o", cfg.Agents.Defaults.Model)
	}
	if cfg.Agents.Defaults.MaxTokens != 4096 {
		t.Errorf("expected maxTokens 4096, got %d", cfg.Agents.Defaults.MaxTokens)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error for invalid JSON (falls back to default), got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Agents.Defaults.Model != def.Agents.Defaults.Model {
		t.Errorf("expected default model %q, got %q", def.Agents.Defaults.Model, cfg.Agents.Defaults.Model)
	}
}

func TestLoad_EmptyPathUsesEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"agents": map[string]any{"defaults": map[string]any{"sessionId": "from-env"}},
	})
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agents.Defaults.SessionID != "from-env" {
		t.Errorf("expected sessionId from $%s, got %q", EnvConfigPath, cfg.Agents.Defaults.SessionID)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := DefaultConfig()
	original.Agents.Defaults.Model = "anthropic/claude-sonnet-4-5"
	original.Agents.Defaults.MaxTokens = 1234

	if err := Save(&original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Agents.Defaults.Model != original.Agents.Defaults.Model {
		t.Errorf("model mismatch: got %q, want %q", loaded.Agents.Defaults.Model, original.Agents.Defaults.Model)
	}
	if loaded.Agents.Defaults.MaxTokens != original.Agents.Defaults.MaxTokens {
		t.Errorf("maxTokens mismatch: got %d, want %d", loaded.Agents.Defaults.MaxTokens, original.Agents.Defaults.MaxTokens)
	}
}

func TestSave_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected permissions 0600, got %04o", perm)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "dir", "config.json")

	cfg := DefaultConfig()
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not created: %v", err)
	}
}

func TestLoad_PartialConfig_UsesDefaults(t *testing.T) {
	dir := t.TempDir()
	// Only set one field; the rest should come from DefaultConfig.
	path := writeConfig(t, dir, map[string]any{
		"agents": map[string]any{
			"defaults": map[string]any{
				"model": "custom/model",
			},
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def := DefaultConfig()
	if cfg.Agents.Defaults.Model != "custom/model" {
		t.Errorf("expected model %q, got %q", "custom/model", cfg.Agents.Defaults.Model)
	}
	// Unset fields should retain their defaults.
	if cfg.Agents.Defaults.Temperature != def.Agents.Defaults.Temperature {
		t.Errorf("expected default temperature %v, got %v", def.Agents.Defaults.Temperature, cfg.Agents.Defaults.Temperature)
	}
	if cfg.Agents.Defaults.MaxToolIter != def.Agents.Defaults.MaxToolIter {
		t.Errorf("expected default maxToolIterations %d, got %d", def.Agents.Defaults.MaxToolIter, cfg.Agents.Defaults.MaxToolIter)
	}
	if cfg.Session.Backend != "file" {
		t.Errorf("expected default session backend file, got %q", cfg.Session.Backend)
	}
}

// ─── YAML ──────────────────────────────────────────────────────────────────

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `agents:
  defaults:
    model: anthropic/claude-sonnet-4-5
    maxToolIterations: 7
    modelBackoffSeconds: 0.5
session:
  backend: redis
  redis:
    addr: redis:6379
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agents.Defaults.MaxToolIter != 7 {
		t.Errorf("expected maxToolIterations 7, got %d", cfg.Agents.Defaults.MaxToolIter)
	}
	if got := cfg.Agents.Defaults.ModelBackoff(); got != 500*time.Millisecond {
		t.Errorf("expected 500ms backoff, got %v", got)
	}
	if cfg.Session.Backend != "redis" || cfg.Session.Redis.Addr != "redis:6379" {
		t.Errorf("unexpected session config: %+v", cfg.Session)
	}
	// Untouched nested defaults survive.
	if cfg.Session.Redis.KeyPrefix != "core" {
		t.Errorf("expected default keyPrefix, got %q", cfg.Session.Redis.KeyPrefix)
	}
}

func TestSave_YAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	original := DefaultConfig()
	original.Memory.Backend = "redis"
	original.Tools.Browser.Enabled = false

	if err := Save(&original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Memory.Backend != "redis" {
		t.Errorf("memory backend mismatch: %q", loaded.Memory.Backend)
	}
	if loaded.Tools.Browser.Enabled {
		t.Error("expected browser disabled after round trip")
	}
}

// ─── Provider matching ─────────────────────────────────────────────────────

func TestMatchProvider_PrefixAndKeyword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.Gemini.APIKey = "g-key"
	cfg.Providers.Anthropic.APIKey = "a-key"

	if got := cfg.MatchProvider("gemini/gemini-2.5-flash").Name; got != "gemini" {
		t.Errorf("prefix match: got %q", got)
	}
	if got := cfg.MatchProvider("claude-sonnet-4-5").Name; got != "anthropic" {
		t.Errorf("keyword match: got %q", got)
	}
	if got := cfg.MatchProvider("some-unknown-model").Name; got != "gemini" {
		t.Errorf("fallback match: got %q", got)
	}
}

func TestMatchProvider_NoCredentials(t *testing.T) {
	cfg := DefaultConfig()
	if res := cfg.MatchProvider(""); res.Provider != nil {
		t.Errorf("expected no provider, got %q", res.Name)
	}
}

func TestGetAPIBase_RegistryDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.Gemini.APIKey = "g-key"
	if got := cfg.GetAPIBase("gemini/gemini-2.5-flash"); got == "" {
		t.Error("expected registry default api base for gemini")
	}
	cfg.Providers.Gemini.APIBase = "http://localhost:9999/v1"
	if got := cfg.GetAPIBase("gemini/gemini-2.5-flash"); got != "http://localhost:9999/v1" {
		t.Errorf("expected configured base, got %q", got)
	}
}

func TestEmbeddingCredentials_FallBackToProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.Gemini.APIKey = "g-key"
	key, _ := cfg.EmbeddingCredentials()
	if key != "g-key" {
		t.Errorf("expected provider key fallback, got %q", key)
	}
	cfg.Memory.Embedding.APIKey = "embed-key"
	key, _ = cfg.EmbeddingCredentials()
	if key != "embed-key" {
		t.Errorf("expected explicit embedding key, got %q", key)
	}
}
