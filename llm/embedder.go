package llm

import (
	"context"
	"fmt"
)

// AsEmbedder adapts a batch-oriented Provider to the single-text
// blend.Embedder interface the Semantic Blender queries live against.
// Batch embedding (with chunking, retry, and a bounded worker pool) goes
// through blend.BatchEmbed directly against Provider.Embed instead.
func AsEmbedder(p Provider) embedderAdapter {
	return embedderAdapter{provider: p}
}

type embedderAdapter struct {
	provider Provider
}

func (e embedderAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("llm: expected 1 embedding, provider returned %d", len(vecs))
	}
	return vecs[0], nil
}
