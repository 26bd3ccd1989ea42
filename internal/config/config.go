// Package config loads and validates clinrag configuration.
// Configuration is read from a YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete clinrag configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	LLM       LLMConfig       `yaml:"llm" json:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	Templates TemplatesConfig `yaml:"templates" json:"templates"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// StoreConfig configures the knowledge store connection.
type StoreConfig struct {
	// DatabaseURL is the Postgres connection string (pgvector required).
	DatabaseURL string `yaml:"database_url" json:"database_url"`

	// MaxConns is the maximum connection pool size.
	MaxConns int `yaml:"max_conns" json:"max_conns"`

	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// LLMConfig configures the external completion and embedding services.
// Any OpenAI-compatible endpoint works (OpenAI, LocalAI, Ollama).
type LLMConfig struct {
	// BaseURL is the API base URL. Empty uses the provider default.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// APIKey authenticates against the service. Usually set via CLINRAG_API_KEY.
	APIKey string `yaml:"api_key" json:"api_key"`

	// RouterModel is the model used for query routing (small, fast).
	RouterModel string `yaml:"router_model" json:"router_model"`

	// AnswerModel is the model used for answer synthesis (higher quality).
	AnswerModel string `yaml:"answer_model" json:"answer_model"`

	// EmbeddingModel is the model used for query embeddings.
	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`

	// RouterTimeout bounds the routing call.
	RouterTimeout time.Duration `yaml:"router_timeout" json:"router_timeout"`

	// AnswerTimeout bounds the answer generation call.
	AnswerTimeout time.Duration `yaml:"answer_timeout" json:"answer_timeout"`
}

// RetrievalConfig configures the retrieval pipeline.
type RetrievalConfig struct {
	// TopK is the default number of results to return.
	TopK int `yaml:"top_k" json:"top_k"`

	// MaxTopK is the maximum allowed results per request.
	MaxTopK int `yaml:"max_top_k" json:"max_top_k"`

	// RRFConstant is the RRF fusion smoothing parameter (k).
	// k=60 is the standard from the original RRF paper.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// CacheSize is the LRU cache size for routing decisions.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// TemplatesConfig configures the graph template registry.
type TemplatesConfig struct {
	// File is an optional YAML file with additional templates merged over
	// the built-in registry.
	File string `yaml:"file" json:"file"`

	// Watch reloads the template file on change (serve mode only).
	Watch bool `yaml:"watch" json:"watch"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			DatabaseURL:    "",
			MaxConns:       10,
			ConnectTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:        "",
			APIKey:         "",
			RouterModel:    "gpt-4o-mini",
			AnswerModel:    "gpt-4o",
			EmbeddingModel: "text-embedding-3-small",
			RouterTimeout:  30 * time.Second,
			AnswerTimeout:  60 * time.Second,
		},
		Retrieval: RetrievalConfig{
			TopK:        10,
			MaxTopK:     50,
			RRFConstant: 60,
			CacheSize:   10000,
		},
		Templates: TemplatesConfig{
			File:  "",
			Watch: false,
		},
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8080,
			LogLevel: "info",
		},
	}
}

// DefaultConfigPath returns the default configuration file path.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/clinrag/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/clinrag/config.yaml (default)
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "clinrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "clinrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "clinrag", "config.yaml")
}

// Load reads configuration from the given path (or the default path when
// empty), applies environment overrides, and validates the result.
// A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies CLINRAG_* environment variables over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CLINRAG_DATABASE_URL"); v != "" {
		c.Store.DatabaseURL = v
	}
	// DATABASE_URL is a conventional alias
	if v := os.Getenv("DATABASE_URL"); v != "" && c.Store.DatabaseURL == "" {
		c.Store.DatabaseURL = v
	}
	if v := os.Getenv("CLINRAG_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("CLINRAG_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("CLINRAG_ROUTER_MODEL"); v != "" {
		c.LLM.RouterModel = v
	}
	if v := os.Getenv("CLINRAG_ANSWER_MODEL"); v != "" {
		c.LLM.AnswerModel = v
	}
	if v := os.Getenv("CLINRAG_EMBEDDING_MODEL"); v != "" {
		c.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("CLINRAG_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.RRFConstant = k
		}
	}
	if v := os.Getenv("CLINRAG_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.TopK = k
		}
	}
	if v := os.Getenv("CLINRAG_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("CLINRAG_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("CLINRAG_TEMPLATES_FILE"); v != "" {
		c.Templates.File = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MaxTopK < c.Retrieval.TopK {
		return fmt.Errorf("retrieval.max_top_k must be >= top_k, got %d < %d", c.Retrieval.MaxTopK, c.Retrieval.TopK)
	}
	if c.Retrieval.RRFConstant <= 0 {
		return fmt.Errorf("retrieval.rrf_constant must be positive, got %d", c.Retrieval.RRFConstant)
	}
	if c.Store.MaxConns <= 0 {
		return fmt.Errorf("store.max_conns must be positive, got %d", c.Store.MaxConns)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
