package recompose

import (
	"bytes"
	"testing"

	"github.com/joeybe1/secsplit/store"
)

func id(n int64) *int64 { return &n }

func TestRecomposeHeadingsRoundTrip(t *testing.T) {
	header := []byte("---\nname: doc\n---\n")
	sections := []store.Section{
		{ID: 1, FileID: 1, ParentID: nil, Title: "A", Body: []byte("# A\nalpha\n")},
		{ID: 2, FileID: 1, ParentID: id(1), Title: "B", Body: []byte("## B\nbeta\n")},
		{ID: 3, FileID: 1, ParentID: nil, Title: "C", Body: []byte("# C\ngamma\n")},
	}

	got := Recompose(header, sections)
	want := []byte("---\nname: doc\n---\n# A\nalpha\n## B\nbeta\n# C\ngamma\n")
	if !bytes.Equal(got, want) {
		t.Fatalf("recompose mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestRecomposeTagWithClosingSuffix(t *testing.T) {
	header := []byte{}
	sections := []store.Section{
		{
			ID: 1, FileID: 1, ParentID: nil, Title: "skill",
			Body:          []byte("<skill name=\"x\">\nleaf body\n"),
			ClosingSuffix: []byte("</skill>\n"),
		},
	}

	got := Recompose(header, sections)
	want := []byte("<skill name=\"x\">\nleaf body\n</skill>\n")
	if !bytes.Equal(got, want) {
		t.Fatalf("recompose mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestRecomposeNestedTags(t *testing.T) {
	header := []byte{}
	sections := []store.Section{
		{ID: 1, FileID: 1, ParentID: nil, Title: "outer",
			Body:          []byte("<outer>\n"),
			ClosingSuffix: []byte("</outer>\n")},
		{ID: 2, FileID: 1, ParentID: id(1), Title: "inner",
			Body:          []byte("<inner>\ntext\n"),
			ClosingSuffix: []byte("</inner>\n")},
	}

	got := Recompose(header, sections)
	want := []byte("<outer>\n<inner>\ntext\n</inner>\n</outer>\n")
	if !bytes.Equal(got, want) {
		t.Fatalf("recompose mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}
