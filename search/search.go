// Package search implements the lexical search surface (spec §4.8,
// component C8): deterministic query rewriting feeding the Store's FTS5
// index.
package search

import (
	"context"
	"strings"

	"github.com/joeybe1/secsplit/store"
)

// Hit mirrors a store.SearchHit, renamed at this layer so callers of
// search don't need to import store directly just to read a result.
type Hit = store.SearchHit

// Engine runs lexical queries against one store.
type Engine struct {
	Store *store.Store
}

// New wraps s in a lexical search Engine.
func New(s *store.Store) *Engine {
	return &Engine{Store: s}
}

var reservedOperators = map[string]bool{"AND": true, "OR": true, "NEAR": true}

// Rewrite implements §4.8's deterministic query-rewriting rule:
//   - a quoted string passes through as a single phrase term
//   - a query already containing a reserved operator (AND, OR, NEAR,
//     uppercase, whitespace-delimited) passes through unchanged
//   - otherwise tokens are split on whitespace and OR-joined to favor
//     recall
//
// No external model is involved; the same input always rewrites to the
// same FTS5 MATCH string.
func Rewrite(query string) string {
	trimmed := strings.TrimSpace(query)
	if strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) && len(trimmed) >= 2 {
		return trimmed
	}

	tokens := strings.Fields(trimmed)
	for _, tok := range tokens {
		if reservedOperators[tok] {
			return trimmed
		}
	}
	if len(tokens) == 0 {
		return trimmed
	}
	return strings.Join(tokens, " OR ")
}

// Search rewrites query and runs it against the store, optionally scoped
// to a single file path, returning up to limit hits ordered by descending
// relevance (§4.8). The caller is responsible for loading bodies.
func (e *Engine) Search(ctx context.Context, query, pathScope string, limit int) ([]Hit, error) {
	return e.Store.Search(ctx, Rewrite(query), pathScope, limit)
}
