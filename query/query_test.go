//go:build cgo

package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeybe1/secsplit/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func seedDoc(t *testing.T, e *Engine) {
	t.Helper()
	_, err := e.Store.PutFile(context.Background(), "doc.md", "guide", "headings", nil, "h", 1, []store.SectionInput{
		{ParentIndex: -1, Depth: 1, Title: "A", Body: []byte("# A\nalpha\n")},
		{ParentIndex: 0, Depth: 2, Title: "B", Body: []byte("## B\nbeta\n")},
		{ParentIndex: -1, Depth: 1, Title: "C", Body: []byte("# C\ngamma\n")},
	})
	require.NoError(t, err)
}

func TestEngineNavigation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	seedDoc(t, e)

	_, sections, err := e.Store.GetFile(ctx, "doc.md")
	require.NoError(t, err)
	a, b, c := sections[0], sections[1], sections[2]

	got, err := e.GetSection(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "A", got.Title)

	child, err := e.FirstChild(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, b.ID, child.ID)

	sib, err := e.NextSibling(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, sib.ID)

	_, err = e.NextSibling(ctx, c.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEngineTree(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	seedDoc(t, e)

	nodes, err := e.Tree(ctx, "doc.md")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Equal(t, "A", nodes[0].Title)
	require.Len(t, nodes[0].Children, 1)
	require.Equal(t, "B", nodes[0].Children[0].Title)
	require.Equal(t, "C", nodes[1].Title)
}

func TestEngineNotFound(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.GetSection(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = e.Tree(ctx, "missing.md")
	require.ErrorIs(t, err, ErrNotFound)
}
