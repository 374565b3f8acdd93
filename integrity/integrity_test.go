//go:build cgo

package integrity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeybe1/secsplit/hashutil"
	"github.com/joeybe1/secsplit/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunAllPass(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	header := []byte("---\nname: a\n---\n")
	body := []byte("# A\nalpha\n")
	full := append(append([]byte{}, header...), body...)
	_, err := s.PutFile(ctx, "a.md", "guide", "headings", header, hashutil.Hash(full), hashutil.Fingerprint(full), []store.SectionInput{
		{ParentIndex: -1, Depth: 1, Title: "A", Body: body},
	})
	require.NoError(t, err)

	report, err := Run(ctx, s)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalFiles)
	require.Equal(t, 1, report.Ok)
	require.Empty(t, report.Mismatched)
}

func TestRunReportsMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.PutFile(ctx, "bad.md", "guide", "headings", nil, "wrong-hash", 1, []store.SectionInput{
		{ParentIndex: -1, Depth: 1, Title: "A", Body: []byte("# A\nalpha\n")},
	})
	require.NoError(t, err)

	report, err := Run(ctx, s)
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalFiles)
	require.Equal(t, 0, report.Ok)
	require.Len(t, report.Mismatched, 1)
	require.Equal(t, "bad.md", report.Mismatched[0].Path)
}

func TestRunEmptyStore(t *testing.T) {
	s := newTestStore(t)
	report, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, 0, report.TotalFiles)
}
