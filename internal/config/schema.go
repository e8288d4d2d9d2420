// Package config defines the configuration schema for core.
//
// JSON keys use camelCase. The same keys are accepted from YAML files.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ProviderConfig holds credentials for one LLM provider.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey" yaml:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty" yaml:"extraHeaders,omitempty"`
}

// ProvidersConfig holds credentials for all supported LLM providers.
type ProvidersConfig struct {
	Custom     ProviderConfig `json:"custom" yaml:"custom"`
	Anthropic  ProviderConfig `json:"anthropic" yaml:"anthropic"`
	OpenAI     ProviderConfig `json:"openai" yaml:"openai"`
	OpenRouter ProviderConfig `json:"openrouter" yaml:"openrouter"`
	Gemini     ProviderConfig `json:"gemini" yaml:"gemini"`
	DeepSeek   ProviderConfig `json:"deepseek" yaml:"deepseek"`
	Groq       ProviderConfig `json:"groq" yaml:"groq"`
	VLLM       ProviderConfig `json:"vllm" yaml:"vllm"`
}

// AgentDefaults holds default values for agent behaviour.
type AgentDefaults struct {
	Workspace    string  `json:"workspace" yaml:"workspace"`
	Model        string  `json:"model" yaml:"model"`
	MaxTokens    int     `json:"maxTokens" yaml:"maxTokens"`
	Temperature  float64 `json:"temperature" yaml:"temperature"`
	MaxToolIter  int     `json:"maxToolIterations" yaml:"maxToolIterations"`
	BackoffSecs  float64 `json:"modelBackoffSeconds" yaml:"modelBackoffSeconds"`
	Parallel     bool    `json:"parallelTools" yaml:"parallelTools"`
	SessionID    string  `json:"sessionId" yaml:"sessionId"`
	RecallCount  int     `json:"recallCount" yaml:"recallCount"`
	Instructions string  `json:"instructions,omitempty" yaml:"instructions,omitempty"`
}

func defaultAgentDefaults() AgentDefaults {
	return AgentDefaults{
		Workspace:   "~/.core/workspace",
		Model:       "gemini/gemini-2.5-flash",
		MaxTokens:   8192,
		Temperature: 0,
		MaxToolIter: 20,
		BackoffSecs: 10,
		SessionID:   "main_user",
		RecallCount: 2,
	}
}

// ModelBackoff is the pause before a failed model call ends the turn.
func (a AgentDefaults) ModelBackoff() time.Duration {
	if a.BackoffSecs < 0 {
		return 0
	}
	return time.Duration(a.BackoffSecs * float64(time.Second))
}

// AgentsConfig wraps agent defaults.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults" yaml:"defaults"`
}

// ---- Tool configs ----------------------------------------------------------

// WebSearchConfig configures the Tavily web-search tool.
type WebSearchConfig struct {
	APIKey     string `json:"apiKey" yaml:"apiKey"`
	MaxResults int    `json:"maxResults" yaml:"maxResults"`
}

// WebToolsConfig groups web-related tool settings.
type WebToolsConfig struct {
	Search WebSearchConfig `json:"search" yaml:"search"`
}

// ExecToolConfig configures the shell tool.
type ExecToolConfig struct {
	Timeout int `json:"timeout" yaml:"timeout"` // seconds
}

// BrowserToolConfig configures the shared headless browser.
type BrowserToolConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Headless bool   `json:"headless" yaml:"headless"`
	ExecPath string `json:"execPath,omitempty" yaml:"execPath,omitempty"`
	Timeout  int    `json:"timeout" yaml:"timeout"` // seconds per action
}

// DesktopToolConfig toggles window and keyboard control.
type DesktopToolConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// ToolsConfig groups all tool-level settings.
type ToolsConfig struct {
	Web                 WebToolsConfig    `json:"web" yaml:"web"`
	Exec                ExecToolConfig    `json:"exec" yaml:"exec"`
	Browser             BrowserToolConfig `json:"browser" yaml:"browser"`
	Desktop             DesktopToolConfig `json:"desktop" yaml:"desktop"`
	RestrictToWorkspace bool              `json:"restrictToWorkspace" yaml:"restrictToWorkspace"`
}

func defaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		Web:     WebToolsConfig{Search: WebSearchConfig{MaxResults: 5}},
		Exec:    ExecToolConfig{Timeout: 60},
		Browser: BrowserToolConfig{Enabled: true, Headless: true, Timeout: 30},
		Desktop: DesktopToolConfig{Enabled: true},
	}
}

// ---- Storage configs -------------------------------------------------------

// RedisConfig points at a Redis server.
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

func defaultRedisConfig() RedisConfig {
	return RedisConfig{Addr: "localhost:6379", KeyPrefix: "core"}
}

// MySQLConfig holds the DSN and pool limits for the MySQL session store.
type MySQLConfig struct {
	DSN          string `json:"dsn" yaml:"dsn"`
	MaxOpenConns int    `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns int    `json:"maxIdleConns" yaml:"maxIdleConns"`
}

// SessionConfig selects where conversations are persisted.
type SessionConfig struct {
	Backend string      `json:"backend" yaml:"backend"` // file | redis | mysql
	Redis   RedisConfig `json:"redis" yaml:"redis"`
	MySQL   MySQLConfig `json:"mysql" yaml:"mysql"`
}

func defaultSessionConfig() SessionConfig {
	return SessionConfig{
		Backend: "file",
		Redis:   defaultRedisConfig(),
		MySQL:   MySQLConfig{MaxOpenConns: 10, MaxIdleConns: 5},
	}
}

// EmbeddingConfig selects the embedding model for vector memory.
type EmbeddingConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // gemini | openai | custom | hash
	Model      string `json:"model" yaml:"model"`
	APIKey     string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	APIBase    string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	Dimensions int    `json:"dimensions" yaml:"dimensions"` // hash embedder only
}

// MemoryConfig configures long-term vector memory.
type MemoryConfig struct {
	Enabled    bool            `json:"enabled" yaml:"enabled"`
	Backend    string          `json:"backend" yaml:"backend"` // file | redis
	Collection string          `json:"collection" yaml:"collection"`
	Path       string          `json:"path,omitempty" yaml:"path,omitempty"`
	Embedding  EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Redis      RedisConfig     `json:"redis" yaml:"redis"`
}

func defaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Enabled:    true,
		Backend:    "file",
		Collection: "core_knowledge",
		Embedding: EmbeddingConfig{
			Provider:   "gemini",
			Model:      "text-embedding-004",
			Dimensions: 256,
		},
		Redis: defaultRedisConfig(),
	}
}

// LoggingConfig controls slog output and file rotation.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"` // text | json
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMb" yaml:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays" yaml:"maxAgeDays"`
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// ---- Root config -----------------------------------------------------------

// Config is the root configuration object, loaded from ~/.core/config.json.
type Config struct {
	Agents    AgentsConfig    `json:"agents" yaml:"agents"`
	Providers ProvidersConfig `json:"providers" yaml:"providers"`
	Tools     ToolsConfig     `json:"tools" yaml:"tools"`
	Memory    MemoryConfig    `json:"memory" yaml:"memory"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Agents:    AgentsConfig{Defaults: defaultAgentDefaults()},
		Providers: ProvidersConfig{},
		Tools:     defaultToolsConfig(),
		Memory:    defaultMemoryConfig(),
		Session:   defaultSessionConfig(),
		Logging:   defaultLoggingConfig(),
	}
}

// WorkspacePath returns the expanded absolute path to the agent workspace.
func (c *Config) WorkspacePath() string {
	ws := c.Agents.Defaults.Workspace
	if ws == "" {
		ws = "~/.core/workspace"
	}
	return expandHome(ws)
}

// MemoryPath returns the file used by the file memory backend.
func (c *Config) MemoryPath() string {
	if c.Memory.Path != "" {
		return expandHome(c.Memory.Path)
	}
	name := c.Memory.Collection
	if name == "" {
		name = "core_knowledge"
	}
	return filepath.Join(c.WorkspacePath(), "memory", name+".json")
}

// LogPath returns the log file path, defaulting to ~/.core/logs/core.log.
func (c *Config) LogPath() string {
	if c.Logging.File != "" {
		return expandHome(c.Logging.File)
	}
	return filepath.Join(DataDir(), "logs", "core.log")
}

// EmbeddingCredentials resolves the key and base URL for the embedding
// endpoint, falling back to the matching chat provider's credentials.
func (c *Config) EmbeddingCredentials() (apiKey, apiBase string) {
	e := c.Memory.Embedding
	apiKey, apiBase = e.APIKey, e.APIBase
	if p := c.ProviderByName(e.Provider); p != nil {
		if apiKey == "" {
			apiKey = p.APIKey
		}
		if apiBase == "" {
			apiBase = p.APIBase
		}
	}
	return apiKey, apiBase
}

// ProviderByName returns a pointer to the ProviderConfig field matching the
// given registry name (e.g. "openrouter", "anthropic"). Returns nil if unknown.
func (c *Config) ProviderByName(name string) *ProviderConfig {
	switch name {
	case "custom":
		return &c.Providers.Custom
	case "anthropic":
		return &c.Providers.Anthropic
	case "openai":
		return &c.Providers.OpenAI
	case "openrouter":
		return &c.Providers.OpenRouter
	case "gemini":
		return &c.Providers.Gemini
	case "deepseek":
		return &c.Providers.DeepSeek
	case "groq":
		return &c.Providers.Groq
	case "vllm":
		return &c.Providers.VLLM
	}
	return nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
