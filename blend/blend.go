// Package blend implements the semantic blender (spec §4.9, component
// C9): mixing the store's lexical (FTS/BM25) results with similarity
// scores from an external vector index, and the bounded-concurrency batch
// embedding path used to populate that index.
package blend

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/joeybe1/secsplit/search"
	"github.com/joeybe1/secsplit/store"
)

// Embedder turns text into a fixed-dimension vector. Implementations may
// fail transiently (rate limits, timeouts); ErrTransient-wrapped errors
// are treated as soft failures by Blend's fallback path.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex returns up to k nearest neighbors for a query vector,
// scored by cosine similarity in [-1, 1]. Providers that report [0, 1]
// work too: combine min-max normalizes each list on its own.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, k int) ([]store.SearchHit, error)
}

// ErrTransient marks an Embedder failure as retryable / soft-degradable,
// rather than a permanent configuration error.
var ErrTransient = errors.New("blend: transient embedder failure")

// DefaultWeight is the default blend weight w from §4.9.
const DefaultWeight = 0.7

// Result is one blended hit. Whether the blend actually ran is reported
// once per call by Outcome.Degraded, not per hit.
type Result struct {
	SectionID int64
	FileID    int64
	Title     string
	Score     float64
}

// Outcome is Blend's return value: the ranked results plus whether the
// semantic half of the blend actually contributed.
type Outcome struct {
	Results  []Result
	Degraded bool // true if the Embedder was unavailable/failing and only lexical scoring was used
	Warning  string
}

// Blender combines store.Search with an Embedder + VectorIndex pair.
type Blender struct {
	Store    *store.Store
	Embedder Embedder
	Index    VectorIndex
}

// New constructs a Blender. embedder/index may be nil, in which case
// Blend always soft-degrades to lexical-only results.
func New(s *store.Store, embedder Embedder, index VectorIndex) *Blender {
	return &Blender{Store: s, Embedder: embedder, Index: index}
}

// Blend implements §4.9's blended ranking. w is the semantic weight,
// clamped to [0, 1]; kLex and kVec bound how many candidates are pulled
// from each collaborator before blending; n bounds the final result
// count.
func (b *Blender) Blend(ctx context.Context, query string, w float64, kLex, kVec, n int) (Outcome, error) {
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}

	lexical, err := b.Store.Search(ctx, search.Rewrite(query), "", kLex)
	if err != nil {
		return Outcome{}, err
	}

	if w == 0 || b.Embedder == nil || b.Index == nil {
		return Outcome{Results: lexicalOnly(lexical, n), Degraded: b.Embedder == nil || b.Index == nil}, nil
	}

	vector, err := b.Embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("blend: embedder unavailable, falling back to lexical-only", "error", err)
		return Outcome{
			Results:  lexicalOnly(lexical, n),
			Degraded: true,
			Warning:  "embedder unavailable: " + err.Error(),
		}, nil
	}

	semantic, err := b.Index.Query(ctx, vector, kVec)
	if err != nil {
		slog.Warn("blend: vector index unavailable, falling back to lexical-only", "error", err)
		return Outcome{
			Results:  lexicalOnly(lexical, n),
			Degraded: true,
			Warning:  "vector index unavailable: " + err.Error(),
		}, nil
	}

	return Outcome{Results: combine(lexical, semantic, w, n)}, nil
}

func lexicalOnly(lexical []store.SearchHit, n int) []Result {
	out := make([]Result, 0, len(lexical))
	for _, h := range lexical {
		out = append(out, Result{SectionID: h.SectionID, FileID: h.FileID, Title: h.Title, Score: h.Score})
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// combine implements §4.9 steps 2-4: per-list min-max normalization,
// weighted sum with missing contributions treated as 0, then a stable
// sort by combined score, tie-broken by lexical score then section id.
func combine(lexical, semantic []store.SearchHit, w float64, n int) []Result {
	lexNorm := minMaxNormalize(lexical)
	semNorm := minMaxNormalizeSemantic(semantic)

	type candidate struct {
		sectionID int64
		fileID    int64
		title     string
		lex       float64
		sem       float64
	}
	candidates := make(map[int64]*candidate)

	for _, h := range lexical {
		candidates[h.SectionID] = &candidate{sectionID: h.SectionID, fileID: h.FileID, title: h.Title, lex: lexNorm[h.SectionID]}
	}
	for _, h := range semantic {
		c, ok := candidates[h.SectionID]
		if !ok {
			c = &candidate{sectionID: h.SectionID, fileID: h.FileID, title: h.Title}
			candidates[h.SectionID] = c
		}
		c.sem = semNorm[h.SectionID]
	}

	out := make([]Result, 0, len(candidates))
	lexScore := make(map[int64]float64, len(candidates))
	for _, c := range candidates {
		score := w*c.sem + (1-w)*c.lex
		out = append(out, Result{SectionID: c.sectionID, FileID: c.fileID, Title: c.title, Score: score})
		lexScore[c.sectionID] = c.lex
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if lexScore[out[i].SectionID] != lexScore[out[j].SectionID] {
			return lexScore[out[i].SectionID] > lexScore[out[j].SectionID]
		}
		return out[i].SectionID < out[j].SectionID
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// minMaxNormalize scales lexical FTS scores (already flipped so higher is
// better by Store.Search) into [0, 1] over the list. A singleton or
// all-equal list normalizes to 1.0 for every member.
func minMaxNormalize(hits []store.SearchHit) map[int64]float64 {
	out := make(map[int64]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}
	span := hi - lo
	for _, h := range hits {
		if span == 0 {
			out[h.SectionID] = 1.0
			continue
		}
		out[h.SectionID] = (h.Score - lo) / span
	}
	return out
}

func minMaxNormalizeSemantic(hits []store.SearchHit) map[int64]float64 {
	return minMaxNormalize(hits)
}

// --- Batch embedding (index-time bulk use; §4.9's batching contract) ---

// ItemResult records the per-item outcome of a BatchEmbed call: either a
// vector or an error, never both. Partial failure never aborts the
// batch (§4.9, §5).
type ItemResult struct {
	Index  int
	Vector []float32
	Err    error
}

// BatchOptions configures BatchEmbed's concurrency and chunking.
type BatchOptions struct {
	MaxItemsPerCall int // default cap 2048
	MaxTokensPerCall int // default cap 8000
	Workers         int // concurrent outbound requests
	EstimateTokens  func(string) int
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.MaxItemsPerCall <= 0 {
		o.MaxItemsPerCall = 2048
	}
	if o.MaxTokensPerCall <= 0 {
		o.MaxTokensPerCall = 8000
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.EstimateTokens == nil {
		o.EstimateTokens = func(s string) int { return len(s) / 4 }
	}
	return o
}

// BatchEmbedFunc generates embeddings for a batch of texts in one call,
// respecting the item/token caps the caller has already chunked to.
type BatchEmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// RetryOptions configures DefaultRetry's exponential backoff.
type RetryOptions struct {
	BaseDelay time.Duration // default 200ms
	MaxDelay  time.Duration // default 10s
	MaxTries  uint          // default 5
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.BaseDelay <= 0 {
		o.BaseDelay = 200 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.MaxTries == 0 {
		o.MaxTries = 5
	}
	return o
}

// DefaultRetry wraps backoff.Retry with exponential backoff, retrying
// only errors wrapped in ErrTransient; any other error is returned
// immediately as permanent (§4.9: "retry transient rate-limit failures").
func DefaultRetry(opts RetryOptions) func(context.Context, func() ([][]float32, error)) ([][]float32, error) {
	opts = opts.withDefaults()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.BaseDelay
	b.MaxInterval = opts.MaxDelay

	return func(ctx context.Context, op func() ([][]float32, error)) ([][]float32, error) {
		return backoff.Retry(ctx, func() ([][]float32, error) {
			vectors, err := op()
			if err != nil && !errors.Is(err, ErrTransient) {
				return nil, backoff.Permanent(err)
			}
			return vectors, err
		}, backoff.WithBackOff(b), backoff.WithMaxTries(opts.MaxTries))
	}
}

// BatchEmbed drives embed over texts, splitting into call-sized batches
// that respect MaxItemsPerCall and MaxTokensPerCall, running up to
// Workers batches concurrently, retrying each batch with exponential
// backoff on transient failure (per-batch, via retry), and returning
// one ItemResult per input index regardless of whether other batches
// failed.
func BatchEmbed(ctx context.Context, texts []string, embed BatchEmbedFunc, retry func(context.Context, func() ([][]float32, error)) ([][]float32, error), opts BatchOptions) []ItemResult {
	opts = opts.withDefaults()
	if retry == nil {
		retry = DefaultRetry(RetryOptions{})
	}
	batches := chunkBatches(texts, opts)

	results := make([]ItemResult, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, bt := range batches {
		bt := bt
		g.Go(func() error {
			vectors, err := retry(ctx, func() ([][]float32, error) {
				return embed(ctx, bt.texts)
			})
			if err != nil {
				for i, idx := range bt.indices {
					_ = i
					results[idx] = ItemResult{Index: idx, Err: err}
				}
				return nil
			}
			for i, idx := range bt.indices {
				if i < len(vectors) {
					results[idx] = ItemResult{Index: idx, Vector: vectors[i]}
				} else {
					results[idx] = ItemResult{Index: idx, Err: errors.New("blend: embedder returned fewer vectors than requested")}
				}
			}
			return nil
		})
	}
	_ = g.Wait() // batch-level errors are recorded per-item, never propagated

	return results
}

type batch struct {
	texts   []string
	indices []int
}

func chunkBatches(texts []string, opts BatchOptions) []batch {
	var out []batch
	var cur batch
	tokens := 0
	for i, t := range texts {
		tk := opts.EstimateTokens(t)
		if len(cur.texts) > 0 && (len(cur.texts) >= opts.MaxItemsPerCall || tokens+tk > opts.MaxTokensPerCall) {
			out = append(out, cur)
			cur = batch{}
			tokens = 0
		}
		cur.texts = append(cur.texts, t)
		cur.indices = append(cur.indices, i)
		tokens += tk
	}
	if len(cur.texts) > 0 {
		out = append(out, cur)
	}
	return out
}
