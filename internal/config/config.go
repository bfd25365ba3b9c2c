// Package config loads and validates Quarry configuration.
// Precedence, lowest to highest: built-in defaults, user config
// (~/.config/quarry/config.yaml), project config (.quarry.yaml), QUARRY_*
// environment variables. The RRF smoothing constant is deliberately not
// configurable; changing it breaks score comparability across queries.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Clamp bounds for tunables. Values outside these ranges are pulled back
// rather than rejected.
const (
	MaxLimit      = 100
	MaxGraphDepth = 5
	MaxPoolSize   = 1000
	MaxRerankPool = 100
)

// Config represents the complete Quarry configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig locates the index produced by the external indexing subsystem.
type PathsConfig struct {
	// IndexDir is the directory holding the three backend indexes.
	IndexDir string `yaml:"index_dir" json:"index_dir"`
}

// SearchConfig configures retrieval parameters.
type SearchConfig struct {
	// DefaultLimit is the default number of results (default: 10).
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// GraphDepth is the k-hop expansion depth (default: 2, clamped to [0, 5]).
	GraphDepth int `yaml:"graph_depth" json:"graph_depth"`

	// GraphFanout caps neighbors per node during expansion (default: 50).
	GraphFanout int `yaml:"graph_fanout" json:"graph_fanout"`

	// BM25PoolSize is the BM25 candidate pool (default: 100).
	BM25PoolSize int `yaml:"bm25_pool_size" json:"bm25_pool_size"`

	// ExactMatchPoolSize is the exact-match candidate pool (default: 50).
	ExactMatchPoolSize int `yaml:"exact_match_pool_size" json:"exact_match_pool_size"`

	// VectorPoolSize is the vector kNN candidate pool (default: 50).
	VectorPoolSize int `yaml:"vector_pool_size" json:"vector_pool_size"`

	// ScoreGapRatio is the tail-truncation ratio (default: 0.4).
	ScoreGapRatio float64 `yaml:"score_gap_ratio" json:"score_gap_ratio"`

	// ScoreGapMinKeep is the minimum position before a gap cut (default: 3).
	ScoreGapMinKeep int `yaml:"score_gap_min_keep" json:"score_gap_min_keep"`

	// RerankPoolSize is how many results are handed to a reranker (default: 50).
	RerankPoolSize int `yaml:"rerank_pool_size" json:"rerank_pool_size"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "http", "static", or "none".
	Provider string `yaml:"provider" json:"provider"`

	// Endpoint is the HTTP embedder base URL (default: http://localhost:11434).
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`

	// Dimensions is the embedding dimension; must match the vector index.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			IndexDir: ".quarry",
		},
		Search: SearchConfig{
			DefaultLimit:       10,
			GraphDepth:         2,
			GraphFanout:        50,
			BM25PoolSize:       100,
			ExactMatchPoolSize: 50,
			VectorPoolSize:     50,
			ScoreGapRatio:      0.4,
			ScoreGapMinKeep:    3,
			RerankPoolSize:     50,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Endpoint:   "http://localhost:11434",
			Model:      "embeddinggemma",
			Dimensions: 256,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// UserConfigPath returns the per-user config file path.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "quarry", "config.yaml")
}

// ProjectConfigPath returns the per-project config file path under root.
func ProjectConfigPath(root string) string {
	return filepath.Join(root, ".quarry.yaml")
}

// Load builds the effective configuration for a project root.
func Load(root string) (*Config, error) {
	cfg := Default()

	if p := UserConfigPath(); p != "" {
		if err := mergeFile(cfg, p); err != nil {
			return nil, err
		}
	}
	if err := mergeFile(cfg, ProjectConfigPath(root)); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	cfg.Clamp()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg. A missing file is not
// an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays QUARRY_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("QUARRY_INDEX_DIR"); v != "" {
		cfg.Paths.IndexDir = v
	}
	if v := os.Getenv("QUARRY_GRAPH_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.GraphDepth = n
		}
	}
	if v := os.Getenv("QUARRY_GRAPH_FANOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.GraphFanout = n
		}
	}
	if v := os.Getenv("QUARRY_SCORE_GAP_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.ScoreGapRatio = f
		}
	}
	if v := os.Getenv("QUARRY_EMBED_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := os.Getenv("QUARRY_EMBED_ENDPOINT"); v != "" {
		cfg.Embeddings.Endpoint = v
	}
	if v := os.Getenv("QUARRY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Clamp pulls tunables back into their allowed ranges.
func (c *Config) Clamp() {
	s := &c.Search
	if s.DefaultLimit <= 0 {
		s.DefaultLimit = 10
	}
	if s.DefaultLimit > MaxLimit {
		s.DefaultLimit = MaxLimit
	}
	if s.GraphDepth < 0 {
		s.GraphDepth = 0
	}
	if s.GraphDepth > MaxGraphDepth {
		s.GraphDepth = MaxGraphDepth
	}
	if s.GraphFanout <= 0 {
		s.GraphFanout = 50
	}
	if s.BM25PoolSize <= 0 {
		s.BM25PoolSize = 100
	}
	if s.BM25PoolSize > MaxPoolSize {
		s.BM25PoolSize = MaxPoolSize
	}
	if s.ExactMatchPoolSize <= 0 {
		s.ExactMatchPoolSize = 50
	}
	if s.ExactMatchPoolSize > MaxPoolSize {
		s.ExactMatchPoolSize = MaxPoolSize
	}
	if s.VectorPoolSize <= 0 {
		s.VectorPoolSize = 50
	}
	if s.VectorPoolSize > MaxPoolSize {
		s.VectorPoolSize = MaxPoolSize
	}
	if s.ScoreGapRatio <= 0 || s.ScoreGapRatio >= 1 {
		s.ScoreGapRatio = 0.4
	}
	if s.ScoreGapMinKeep < 1 {
		s.ScoreGapMinKeep = 3
	}
	if s.RerankPoolSize <= 0 {
		s.RerankPoolSize = 50
	}
	if s.RerankPoolSize > MaxRerankPool {
		s.RerankPoolSize = MaxRerankPool
	}
}

// Validate checks fields that cannot be clamped into shape.
func (c *Config) Validate() error {
	switch c.Embeddings.Provider {
	case "http", "static", "none":
	default:
		return fmt.Errorf("embeddings.provider must be http, static, or none, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider != "none" && c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Paths.IndexDir == "" {
		return fmt.Errorf("paths.index_dir must not be empty")
	}
	return nil
}
