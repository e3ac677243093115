package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dshills/termhelper-rag/pkg/types"
)

// ConfigFileName is the optional per-project tuning file, read from
// <project_root>/.terminal_helper/rag-config.yaml.
const ConfigFileName = "rag-config.yaml"

// HybridConfig tunes rank fusion.
type HybridConfig struct {
	BM25Weight   float64 `yaml:"bm25_weight"`
	VectorWeight float64 `yaml:"vector_weight"`
	TopK         int     `yaml:"top_k"`
}

// BM25Config tunes the lexical index. Values are locked into an index at
// creation and persisted with it.
type BM25Config struct {
	K1      float64 `yaml:"k1"`
	B       float64 `yaml:"b"`
	Epsilon float64 `yaml:"epsilon"`
}

// ChunkerConfig tunes chunk sizing.
type ChunkerConfig struct {
	MaxLines     int `yaml:"max_lines"`
	MaxChars     int `yaml:"max_chars"`
	OverlapLines int `yaml:"overlap_lines"`
}

// EmbedderConfig configures the out-of-process embedding service.
type EmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// WalkerConfig tunes file discovery.
type WalkerConfig struct {
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

// Config is the root per-project tuning structure.
type Config struct {
	Hybrid   HybridConfig   `yaml:"hybrid"`
	BM25     BM25Config     `yaml:"bm25"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Walker   WalkerConfig   `yaml:"walker"`
}

// Default returns the engine defaults.
func Default() *Config {
	return &Config{
		Hybrid:   HybridConfig{BM25Weight: 0.3, VectorWeight: 0.7, TopK: 5},
		BM25:     BM25Config{K1: 1.2, B: 0.75, Epsilon: 0.25},
		Chunker:  ChunkerConfig{MaxLines: 40, MaxChars: 1200, OverlapLines: 10},
		Embedder: EmbedderConfig{BaseURL: "http://127.0.0.1:8765", Dimension: 768, TimeoutSecs: 30},
	}
}

// Load reads the tuning config under projectRoot. A missing file returns
// defaults; an unreadable or invalid file returns an error.
func Load(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, ".terminal_helper", ConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidConfig, path, err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot honor.
func (c *Config) Validate() error {
	if c.Hybrid.BM25Weight < 0 || c.Hybrid.VectorWeight < 0 {
		return fmt.Errorf("%w: negative fusion weight", types.ErrInvalidConfig)
	}
	if c.Hybrid.BM25Weight == 0 && c.Hybrid.VectorWeight == 0 {
		return fmt.Errorf("%w: both fusion weights are zero", types.ErrInvalidConfig)
	}
	if c.Hybrid.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", types.ErrInvalidConfig)
	}
	if c.Embedder.Dimension <= 0 {
		return fmt.Errorf("%w: embedder dimension must be positive", types.ErrInvalidConfig)
	}
	return nil
}

// applyDefaults fills fields an explicit file left at zero.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Hybrid.TopK == 0 {
		cfg.Hybrid.TopK = def.Hybrid.TopK
	}
	if cfg.Hybrid.BM25Weight == 0 && cfg.Hybrid.VectorWeight == 0 {
		cfg.Hybrid = def.Hybrid
	}
	if cfg.BM25.K1 == 0 {
		cfg.BM25.K1 = def.BM25.K1
	}
	if cfg.BM25.B == 0 {
		cfg.BM25.B = def.BM25.B
	}
	if cfg.BM25.Epsilon == 0 {
		cfg.BM25.Epsilon = def.BM25.Epsilon
	}
	if cfg.Chunker.MaxLines == 0 {
		cfg.Chunker.MaxLines = def.Chunker.MaxLines
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = def.Chunker.MaxChars
	}
	if cfg.Chunker.OverlapLines == 0 {
		cfg.Chunker.OverlapLines = def.Chunker.OverlapLines
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = def.Embedder.BaseURL
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = def.Embedder.Dimension
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = def.Embedder.TimeoutSecs
	}
}
