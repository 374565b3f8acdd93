package secsplit

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the secsplit engine (spec §6.3).
type Config struct {
	// StorePath is the filesystem path of the embedded store file.
	// If empty, defaults to ~/.secsplit/secsplit.db
	StorePath string `json:"store_path" yaml:"store_path"`

	// EnableEmbeddings gates whether SearchBlended consults the Embedder at
	// all. When false, SearchBlended always degrades to lexical search.
	EnableEmbeddings bool `json:"enable_embeddings" yaml:"enable_embeddings"`

	// EmbedderModelID is an opaque string stored alongside vectors so that
	// embeddings produced by different models never collide in the index.
	EmbedderModelID string `json:"embedder_model_id" yaml:"embedder_model_id"`

	// EmbedderBatchMaxItems bounds items sent in one batch call to the
	// Embedder. Hard cap 2048 regardless of configured value (§4.9).
	EmbedderBatchMaxItems int `json:"embedder_batch_max_items" yaml:"embedder_batch_max_items"`

	// EmbedderBatchMaxTokens bounds the estimated token count per batch call.
	EmbedderBatchMaxTokens int `json:"embedder_batch_max_tokens" yaml:"embedder_batch_max_tokens"`

	// EmbedderWorkers is the number of concurrent in-flight outbound
	// embedding requests during bulk index-time batching.
	EmbedderWorkers int `json:"embedder_workers" yaml:"embedder_workers"`

	// EmbedderRetryBaseMS is the exponential backoff base, in milliseconds,
	// for retrying ExternalTransient Embedder failures.
	EmbedderRetryBaseMS int `json:"embedder_retry_base_ms" yaml:"embedder_retry_base_ms"`

	// EmbedderRetryMax is the maximum retry attempts per batch item.
	EmbedderRetryMax int `json:"embedder_retry_max" yaml:"embedder_retry_max"`

	// VectorWeightDefault is the default blend weight `w` used by
	// SearchBlended when the caller doesn't override it.
	VectorWeightDefault float64 `json:"vector_weight_default" yaml:"vector_weight_default"`

	// SearchDefaultLimit is the default k for search results.
	SearchDefaultLimit int `json:"search_default_limit" yaml:"search_default_limit"`

	// EmbeddingDim is the fixed dimension of stored vectors; must match the
	// configured Embedder model.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`
}

// DefaultConfig returns a Config with the defaults named in spec §6.3.
// The store is placed at ~/.secsplit/secsplit.db by default.
func DefaultConfig() Config {
	return Config{
		EnableEmbeddings:       false,
		EmbedderModelID:        "",
		EmbedderBatchMaxItems:  2048,
		EmbedderBatchMaxTokens: 8000,
		EmbedderWorkers:        5,
		EmbedderRetryBaseMS:    200,
		EmbedderRetryMax:       5,
		VectorWeightDefault:    0.7,
		SearchDefaultLimit:     20,
		EmbeddingDim:           768,
	}
}

// LoadConfig reads a YAML configuration file and overlays its non-zero
// fields onto DefaultConfig(). A missing file is not an error; absence of
// the path argument (empty string) simply returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.EmbedderBatchMaxItems > 2048 {
		cfg.EmbedderBatchMaxItems = 2048
	}
	return cfg, nil
}

// resolveStorePath computes the final store file path from config fields.
func (c *Config) resolveStorePath() string {
	if c.StorePath != "" {
		return c.StorePath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "secsplit.db" // fallback to cwd
	}
	return filepath.Join(home, ".secsplit", "secsplit.db")
}
