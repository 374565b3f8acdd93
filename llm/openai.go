package llm

import "context"

// openAIProvider implements Provider for the OpenAI embeddings API.
//
// Supported embedding models:
//
//	text-embedding-3-small  (1536 dim) — default
//	text-embedding-3-large  (3072 dim)
//	text-embedding-ada-002  (1536 dim)
type openAIProvider struct {
	base openAICompatClient
}

// NewOpenAI creates a provider for OpenAI.
func NewOpenAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	return &openAIProvider{base: newOpenAICompatClient(cfg)}
}

func (p *openAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}
