// Package llm provides embedding-generation clients for the Semantic
// Blender (component C9). A Provider is a thin HTTP binding to one
// embedding API; secsplit wires whichever one Config.Provider names into
// blend.Embedder via AsEmbedder.
package llm

import (
	"context"
	"fmt"
)

// Provider embeds a batch of texts. Implementations are safe for
// concurrent use by blend.BatchEmbed's worker pool.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config configures an embedding provider.
type Config struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, openai, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// NewProvider creates an embedding provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg), nil
	case "openai":
		return NewOpenAI(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
