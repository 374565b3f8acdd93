//go:build cgo

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/joeybe1/secsplit/hashutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.EmbeddingDim() != 4 {
		t.Fatalf("expected embedding dim 4, got %d", s.EmbeddingDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestNewRejectsSecondWriterOnSamePath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	defer s.Close()

	if _, err := New(dbPath, 4); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen for a second writer on the same path, got %v", err)
	}
}

func threeSections() []SectionInput {
	return []SectionInput{
		{ParentIndex: -1, Depth: 1, Title: "A", Body: []byte("# A\nalpha\n"), LineStart: 1, LineEnd: 2},
		{ParentIndex: 0, Depth: 2, Title: "B", Body: []byte("## B\nbeta\n"), LineStart: 3, LineEnd: 4},
		{ParentIndex: -1, Depth: 1, Title: "C", Body: []byte("# C\ngamma\n"), LineStart: 5, LineEnd: 6},
	}
}

func TestPutFileAndGetFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.PutFile(ctx, "doc.md", "guide", "headings", []byte("---\nname: x\n---\n"), "hash1", hashutil.Fingerprint([]byte("hash1")), threeSections())
	if err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero file id")
	}

	f, sections, err := s.GetFile(ctx, "doc.md")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if f.Kind != "guide" || f.Shape != "headings" || f.ContentHash != "hash1" {
		t.Fatalf("unexpected file row: %+v", f)
	}
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	if sections[0].Title != "A" || sections[1].Title != "B" || sections[2].Title != "C" {
		t.Fatalf("unexpected section order: %+v", sections)
	}
	if sections[1].ParentID == nil || *sections[1].ParentID != sections[0].ID {
		t.Fatalf("expected B's parent to be A, got %+v", sections[1].ParentID)
	}
	if sections[2].ParentID != nil {
		t.Fatalf("expected C to be top-level, got parent %v", sections[2].ParentID)
	}
}

func TestPutFileReplacesExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.PutFile(ctx, "doc.md", "guide", "headings", nil, "hash1", hashutil.Fingerprint([]byte("hash1")), threeSections()); err != nil {
		t.Fatalf("first PutFile: %v", err)
	}
	if _, err := s.PutFile(ctx, "doc.md", "guide", "headings", nil, "hash2", hashutil.Fingerprint([]byte("hash2")), threeSections()[:1]); err != nil {
		t.Fatalf("second PutFile: %v", err)
	}

	f, sections, err := s.GetFile(ctx, "doc.md")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if f.ContentHash != "hash2" {
		t.Fatalf("expected replaced file to carry hash2, got %s", f.ContentHash)
	}
	if len(sections) != 1 {
		t.Fatalf("expected exactly 1 section after replace, got %d", len(sections))
	}
}

func TestPutFileSkipsReinsertOnUnchangedFingerprint(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	fp := hashutil.Fingerprint([]byte("same bytes"))
	id1, err := s.PutFile(ctx, "doc.md", "guide", "headings", nil, "hash1", fp, threeSections())
	if err != nil {
		t.Fatalf("first PutFile: %v", err)
	}

	// Same contentHash and fingerprint, but a different section set: if the
	// short-circuit fired, this second set must never have been applied.
	id2, err := s.PutFile(ctx, "doc.md", "guide", "headings", nil, "hash1", fp, threeSections()[:1])
	if err != nil {
		t.Fatalf("second PutFile: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected unchanged re-ingest to return the same file id, got %d and %d", id1, id2)
	}

	_, sections, err := s.GetFile(ctx, "doc.md")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if len(sections) != 3 {
		t.Fatalf("expected the original 3 sections to survive the short-circuited re-ingest, got %d", len(sections))
	}
}

func TestPutFileRejectsInvalidKind(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.PutFile(ctx, "doc.md", "not-a-kind", "headings", nil, "h", 0, nil); err == nil {
		t.Fatal("expected error for invalid kind")
	}
}

func TestGetFileNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.GetFile(context.Background(), "missing.md"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNavigation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.PutFile(ctx, "doc.md", "guide", "headings", nil, "h", 1, threeSections()); err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	_, sections, err := s.GetFile(ctx, "doc.md")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	a, b, c := sections[0], sections[1], sections[2]

	child, err := s.FirstChild(ctx, a.ID)
	if err != nil || child.ID != b.ID {
		t.Fatalf("expected first_child(A) == B, got %+v err=%v", child, err)
	}
	if _, err := s.FirstChild(ctx, b.ID); err != ErrNotFound {
		t.Fatalf("expected no child for B, got %v", err)
	}

	sib, err := s.NextSibling(ctx, a.ID)
	if err != nil || sib.ID != c.ID {
		t.Fatalf("expected next_sibling(A) == C, got %+v err=%v", sib, err)
	}
	if _, err := s.NextSibling(ctx, c.ID); err != ErrNotFound {
		t.Fatalf("expected no further sibling after C, got %v", err)
	}
}

func TestDeleteFileCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.PutFile(ctx, "doc.md", "guide", "headings", nil, "h", 1, threeSections()); err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	_, sections, _ := s.GetFile(ctx, "doc.md")
	for _, sec := range sections {
		if err := s.InsertEmbedding(ctx, sec.ID, sec.FileID, "test-model", []float32{0.1, 0.2, 0.3, 0.4}); err != nil {
			t.Fatalf("InsertEmbedding: %v", err)
		}
	}

	if err := s.DeleteFile(ctx, "doc.md"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, _, err := s.GetFile(ctx, "doc.md"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	for _, sec := range sections {
		if _, err := s.GetSection(ctx, sec.ID); err != ErrNotFound {
			t.Fatalf("expected section %d gone after cascade, got %v", sec.ID, err)
		}
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Embeddings != 0 {
		t.Fatalf("expected embeddings cascaded away, got %d", st.Embeddings)
	}
}

func TestSearchFindsExactTerm(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.PutFile(ctx, "doc.md", "guide", "headings", nil, "h", 1, []SectionInput{
		{ParentIndex: -1, Depth: 1, Title: "python handler", Body: []byte("# python handler\nhandles python requests\n")},
		{ParentIndex: -1, Depth: 1, Title: "javascript handler", Body: []byte("# javascript handler\nhandles js requests\n")},
	})
	if err != nil {
		t.Fatalf("PutFile: %v", err)
	}

	hits, err := s.Search(ctx, `"python"`, "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].Title != "python handler" {
		t.Fatalf("expected python handler as top hit, got %+v", hits)
	}
}
