// Package query implements the navigation surface (spec §4.7, component
// C7): get_section, first_child, next_sibling, and tree, each a thin
// pass-through to the Store with §7's error taxonomy applied at the
// boundary.
package query

import (
	"context"
	"errors"

	"github.com/joeybe1/secsplit/store"
)

// ErrNotFound is returned when a requested section or file does not exist.
var ErrNotFound = errors.New("query: not found")

// Engine answers navigation queries against one store.
type Engine struct {
	Store *store.Store
}

// New wraps s in a navigation Engine.
func New(s *store.Store) *Engine {
	return &Engine{Store: s}
}

// GetSection returns one section by id.
func (e *Engine) GetSection(ctx context.Context, id int64) (*store.Section, error) {
	sec, err := e.Store.GetSection(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return sec, err
}

// FirstChild returns the first child of sectionID, in order_index order.
func (e *Engine) FirstChild(ctx context.Context, sectionID int64) (*store.Section, error) {
	sec, err := e.Store.FirstChild(ctx, sectionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return sec, err
}

// NextSibling returns the next sibling of sectionID, in order_index order.
func (e *Engine) NextSibling(ctx context.Context, sectionID int64) (*store.Section, error) {
	sec, err := e.Store.NextSibling(ctx, sectionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return sec, err
}

// Tree returns the depth-first, body-elided hierarchy for path.
func (e *Engine) Tree(ctx context.Context, path string) ([]*store.TreeNode, error) {
	nodes, err := e.Store.Tree(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return nodes, err
}
