// Package config provides configuration loading and structs for the kensaku server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Metadata   MetadataConfig   `yaml:"metadata"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Search     SearchConfig     `yaml:"search"`
	Backends   BackendsConfig   `yaml:"backends"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MetadataConfig selects and configures the metadata document store.
// Driver is "mongo" or "sqlite".
type MetadataConfig struct {
	Driver     string `yaml:"driver"`
	MongoURI   string `yaml:"mongo_uri"`
	MongoDB    string `yaml:"mongo_database"`
	SQLitePath string `yaml:"sqlite_path"`
}

// EmbeddingConfig holds external embedding service settings.
type EmbeddingConfig struct {
	APIURL         string `yaml:"api_url"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	BatchSize      int    `yaml:"batch_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the embedding request timeout.
func (c *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GenerationConfig holds external text generation service settings.
type GenerationConfig struct {
	APIURL         string `yaml:"api_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the generation request timeout.
func (c *GenerationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ChunkingConfig holds text splitting settings. Overlap must be smaller than
// MaxWords; this is validated once at startup.
type ChunkingConfig struct {
	MaxWords      int `yaml:"max_words"`
	Overlap       int `yaml:"overlap"`
	SnippetLength int `yaml:"snippet_length"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
	// CandidateMultiplier widens the raw k-NN candidate set when the flat
	// backend post-filters by category.
	CandidateMultiplier int `yaml:"candidate_multiplier"`
}

// BackendsConfig enables and configures the vector backends.
type BackendsConfig struct {
	OpenSearch OpenSearchConfig `yaml:"opensearch"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`
	Flat       FlatConfig       `yaml:"flat"`
}

// OpenSearchConfig holds distributed-index backend settings.
type OpenSearchConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
}

// QdrantConfig holds native-vector-store backend settings.
type QdrantConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the Qdrant request timeout.
func (c *QdrantConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FlatConfig holds serialized-index backend settings.
type FlatConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the config file at path, applies defaults, and then
// environment overrides. A missing file is not an error: defaults plus
// environment are used, so the server can run from a bare .env.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration errors that must stop startup.
func Validate(cfg *Config) error {
	if cfg.Chunking.Overlap >= cfg.Chunking.MaxWords {
		return fmt.Errorf("chunking overlap (%d) must be smaller than max_words (%d)",
			cfg.Chunking.Overlap, cfg.Chunking.MaxWords)
	}
	switch cfg.Metadata.Driver {
	case "mongo", "sqlite":
	default:
		return fmt.Errorf("unknown metadata driver: %s (supported: mongo, sqlite)", cfg.Metadata.Driver)
	}
	return nil
}

// applyEnv overrides selected settings from the environment. Values are read
// after godotenv has populated the process environment from .env.
func applyEnv(cfg *Config) {
	if v := os.Getenv("KENSAKU_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("KENSAKU_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KENSAKU_DEBUG"); v != "" {
		cfg.Debug = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Metadata.MongoURI = v
	}
	if v := os.Getenv("MONGO_DB"); v != "" {
		cfg.Metadata.MongoDB = v
	}
	if v := os.Getenv("OPENSEARCH_HOST"); v != "" {
		cfg.Backends.OpenSearch.Addresses = []string{v}
		cfg.Backends.OpenSearch.Enabled = true
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.Backends.Qdrant.URL = v
		cfg.Backends.Qdrant.Enabled = true
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.Backends.Qdrant.APIKey = v
	}
	if v := os.Getenv("OLLAMA_API_URL"); v != "" {
		cfg.Embedding.APIURL = v
	}
	if v := os.Getenv("OLLAMA_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("OLLAMA_EMBEDDING_DIMENSION"); v != "" {
		if dim, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dimensions = dim
		}
	}
	if v := os.Getenv("OLLAMA_GENERATE_API"); v != "" {
		cfg.Generation.APIURL = v
	}
	if v := os.Getenv("OLLAMA_GENERATE_MODEL"); v != "" {
		cfg.Generation.Model = v
	}
}
