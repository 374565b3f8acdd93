package blend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeybe1/secsplit/store"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

type fakeIndex struct {
	hits []store.SearchHit
	err  error
}

func (f fakeIndex) Query(ctx context.Context, vector []float32, k int) ([]store.SearchHit, error) {
	return f.hits, f.err
}

// TestBlendWeightedOrder reproduces the §8 blended-search scenario: S1
// (title "python handler"), S2 ("javascript handler"), S3 ("python
// error handling"), w=0.7, semantic similarity {S1:0.9, S2:0.2, S3:0.6}.
// Top-3 order must be S1, S3, S2.
func TestBlendWeightedOrder(t *testing.T) {
	lexical := []store.SearchHit{
		{SectionID: 1, FileID: 1, Title: "python handler", Score: 3.0},
		{SectionID: 3, FileID: 1, Title: "python error handling", Score: 2.0},
		{SectionID: 2, FileID: 1, Title: "javascript handler", Score: 1.0},
	}
	semantic := []store.SearchHit{
		{SectionID: 1, FileID: 1, Title: "python handler", Score: 0.9},
		{SectionID: 3, FileID: 1, Title: "python error handling", Score: 0.6},
		{SectionID: 2, FileID: 1, Title: "javascript handler", Score: 0.2},
	}

	out := combine(lexical, semantic, 0.7, 3)
	require.Len(t, out, 3)
	require.Equal(t, int64(1), out[0].SectionID)
	require.Equal(t, int64(3), out[1].SectionID)
	require.Equal(t, int64(2), out[2].SectionID)
}

func TestMinMaxNormalizeSingleton(t *testing.T) {
	hits := []store.SearchHit{{SectionID: 1, Score: 42}}
	norm := minMaxNormalize(hits)
	require.Equal(t, 1.0, norm[1])
}

func TestMinMaxNormalizeAllEqual(t *testing.T) {
	hits := []store.SearchHit{{SectionID: 1, Score: 5}, {SectionID: 2, Score: 5}}
	norm := minMaxNormalize(hits)
	require.Equal(t, 1.0, norm[1])
	require.Equal(t, 1.0, norm[2])
}

func TestLexicalOnlyFallbackList(t *testing.T) {
	b := &Blender{Embedder: nil, Index: nil}
	lexical := []store.SearchHit{{SectionID: 1, Score: 1}}
	out := lexicalOnly(lexical, 0)
	require.Len(t, out, 1)
	require.Equal(t, int64(1), out[0].SectionID)
	require.NotNil(t, b)
}

func TestBatchEmbedSucceedsAcrossBatches(t *testing.T) {
	texts := []string{"a", "b", "c"}
	calls := 0
	embed := func(ctx context.Context, batch []string) ([][]float32, error) {
		calls++
		vectors := make([][]float32, len(batch))
		for i := range batch {
			vectors[i] = []float32{float32(i)}
		}
		return vectors, nil
	}
	noRetry := func(ctx context.Context, op func() ([][]float32, error)) ([][]float32, error) {
		return op()
	}

	results := BatchEmbed(context.Background(), texts, embed, noRetry, BatchOptions{MaxItemsPerCall: 2})
	require.Len(t, results, 3)
	for _, r := range results {
		require.NoError(t, r.Err)
	}
	require.True(t, calls >= 2)
}

func TestChunkBatchesRespectsItemCap(t *testing.T) {
	texts := []string{"a", "b", "c", "d", "e"}
	batches := chunkBatches(texts, BatchOptions{MaxItemsPerCall: 2, MaxTokensPerCall: 8000, EstimateTokens: func(s string) int { return 1 }})
	require.Len(t, batches, 3)
	require.Len(t, batches[0].texts, 2)
	require.Len(t, batches[2].texts, 1)
}
