// Package secsplit is the library surface described in spec §6.1: a
// byte-perfect structured-text store with parse/recompose/validate,
// navigation, lexical and blended search, and composition.
package secsplit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeybe1/secsplit/blend"
	"github.com/joeybe1/secsplit/compose"
	"github.com/joeybe1/secsplit/detect"
	"github.com/joeybe1/secsplit/hashutil"
	"github.com/joeybe1/secsplit/parser"
	"github.com/joeybe1/secsplit/query"
	"github.com/joeybe1/secsplit/recompose"
	"github.com/joeybe1/secsplit/search"
	"github.com/joeybe1/secsplit/store"
	"github.com/joeybe1/secsplit/validate"
)

// Engine is the library contract named in spec §6.1.
type Engine interface {
	Ingest(ctx context.Context, path string, data []byte) (int64, error)
	GetSection(ctx context.Context, id int64) (*store.Section, error)
	FirstChild(ctx context.Context, id int64) (*store.Section, error)
	NextSibling(ctx context.Context, id int64) (*store.Section, error)
	Tree(ctx context.Context, path string) ([]*store.TreeNode, error)
	Search(ctx context.Context, query string, scope string, k int) ([]store.SearchHit, error)
	SearchBlended(ctx context.Context, queryStr string, w float64, k int) (blend.Outcome, error)
	Recompose(ctx context.Context, path string) ([]byte, error)
	Validate(ctx context.Context, path string) (validate.Result, error)
	Compose(ctx context.Context, sectionIDs []int64, outputPath string, metadata compose.Metadata) ([]byte, string, error)
	Delete(ctx context.Context, path string) error
	Store() *store.Store
	Close() error
}

// engine is the concrete Engine implementation wiring every component
// package together over one Store.
type engine struct {
	cfg      Config
	store    *store.Store
	query    *query.Engine
	search   *search.Engine
	blender  *blend.Blender
	composer *compose.Composer
}

// New opens (or creates) the store described by cfg and wires every
// component package around it. If cfg.EnableEmbeddings is false, the
// Blender is constructed with nil collaborators and always soft-degrades
// to lexical-only results (spec §4.9 fallback, §6.3 enable_embeddings).
func New(cfg Config, embedder blend.Embedder, index blend.VectorIndex) (Engine, error) {
	dbPath := cfg.resolveStorePath()
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}

	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyOpen) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyOpenForWrite, dbPath)
		}
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var e blend.Embedder
	var vi blend.VectorIndex
	if cfg.EnableEmbeddings {
		e = embedder
		vi = index
		if vi == nil {
			// The embedded store's own vec0 table is the natural vector
			// index; callers only need to supply one explicitly when
			// substituting a different backend (e.g. in tests).
			vi = s
		}
	}

	return &engine{
		cfg:      cfg,
		store:    s,
		query:    query.New(s),
		search:   search.New(s),
		blender:  blend.New(s, e, vi),
		composer: compose.New(s),
	}, nil
}

// Ingest implements §6.1's ingest(path, bytes) -> FileId: classify shape,
// parse into a byte-accounted section tree, derive kind from the file
// extension, and persist via put_file. Re-ingesting the same path
// replaces its prior contents (§4.4); re-ingesting unchanged bytes is a
// no-op short-circuited by PutFile's fingerprint check.
func (e *engine) Ingest(ctx context.Context, path string, data []byte) (int64, error) {
	shape := detect.Detect(data, path)

	result, err := parser.Parse(data, shape, filepath.Base(path))
	if err != nil {
		if errors.Is(err, parser.ErrByteAccounting) {
			return 0, fmt.Errorf("%w: %v", ErrByteAccounting, err)
		}
		return 0, fmt.Errorf("%w: %v", ErrInputMalformed, err)
	}

	sections := flattenToInputs(result)
	kind := kindFromPath(path)
	contentHash := hashutil.Hash(data)
	fingerprint := hashutil.Fingerprint(data)

	id, err := e.store.PutFile(ctx, path, kind, string(shape), result.HeaderBlob, contentHash, fingerprint, sections)
	if err != nil {
		if errors.Is(err, store.ErrInvalidKind) || errors.Is(err, store.ErrInvalidShape) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return 0, err
	}
	return id, nil
}

// flattenToInputs walks result's tree in document order, recording each
// parent's position in the flat output so parent_id can be wired by
// index at store time (store.SectionInput.ParentIndex), matching
// parser.ParseResult.Flatten's own traversal order exactly.
func flattenToInputs(result *parser.ParseResult) []store.SectionInput {
	var out []store.SectionInput
	indexOf := make(map[*parser.Section]int)

	var walk func(sec *parser.Section, parentIdx int)
	walk = func(sec *parser.Section, parentIdx int) {
		idx := len(out)
		indexOf[sec] = idx
		out = append(out, store.SectionInput{
			ParentIndex:   parentIdx,
			Depth:         sec.Depth,
			Title:         sec.Title,
			Body:          sec.Body,
			ClosingSuffix: sec.ClosingSuffix,
			LineStart:     sec.LineStart,
			LineEnd:       sec.LineEnd,
		})
		for _, child := range sec.Children {
			walk(child, idx)
		}
	}
	for _, top := range result.TopLevel {
		walk(top, -1)
	}
	return out
}

// kindFromPath maps a file extension to one of the closed kind
// enumeration values (§3), defaulting to "documentation" for anything
// unrecognized rather than rejecting the ingest outright.
func kindFromPath(path string) string {
	switch filepath.Ext(path) {
	case ".sh", ".bash":
		return "script"
	case ".json", ".yaml", ".yml":
		return "config"
	default:
		return "documentation"
	}
}

func (e *engine) GetSection(ctx context.Context, id int64) (*store.Section, error) {
	sec, err := e.query.GetSection(ctx, id)
	return sec, wrapNotFound(err)
}

func (e *engine) FirstChild(ctx context.Context, id int64) (*store.Section, error) {
	sec, err := e.query.FirstChild(ctx, id)
	return sec, wrapNotFound(err)
}

func (e *engine) NextSibling(ctx context.Context, id int64) (*store.Section, error) {
	sec, err := e.query.NextSibling(ctx, id)
	return sec, wrapNotFound(err)
}

func (e *engine) Tree(ctx context.Context, path string) ([]*store.TreeNode, error) {
	nodes, err := e.query.Tree(ctx, path)
	return nodes, wrapNotFound(err)
}

func (e *engine) Search(ctx context.Context, queryStr string, scope string, k int) ([]store.SearchHit, error) {
	if k <= 0 {
		k = e.cfg.SearchDefaultLimit
	}
	return e.search.Search(ctx, queryStr, scope, k)
}

func (e *engine) SearchBlended(ctx context.Context, queryStr string, w float64, k int) (blend.Outcome, error) {
	if k <= 0 {
		k = e.cfg.SearchDefaultLimit
	}
	if w < 0 {
		w = e.cfg.VectorWeightDefault
	}
	return e.blender.Blend(ctx, queryStr, w, k, k, k)
}

func (e *engine) Recompose(ctx context.Context, path string) ([]byte, error) {
	f, sections, err := e.store.GetFile(ctx, path)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return recompose.Recompose(f.HeaderBlob, sections), nil
}

func (e *engine) Validate(ctx context.Context, path string) (validate.Result, error) {
	res, err := validate.Validate(ctx, e.store, path)
	return res, wrapNotFound(err)
}

func (e *engine) Compose(ctx context.Context, sectionIDs []int64, outputPath string, metadata compose.Metadata) ([]byte, string, error) {
	hash, err := e.composer.Compose(ctx, sectionIDs, outputPath, metadata)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, "", err
	}
	return data, hash, nil
}

func (e *engine) Delete(ctx context.Context, path string) error {
	err := e.store.DeleteFile(ctx, path)
	return wrapNotFound(err)
}

func (e *engine) Store() *store.Store {
	return e.store
}

func (e *engine) Close() error {
	return e.store.Close()
}

func wrapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, query.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
