// Package recompose rebuilds a file's original bytes from its stored
// sections (spec §4.5, component C5).
package recompose

import (
	"bytes"

	"github.com/joeybe1/secsplit/store"
)

// Recompose implements the uniform emission rule from §4.5: emit the
// header, then for each top-level section emit body, recursively emit
// children in order_index order, then emit closing_suffix. Heading
// sections have no closing suffix and their children were deliberately
// excluded from body; tag sections' body already stops at the first
// child (or the byte before the closing tag with no children).
//
// sections must be in order_index order, as returned by Store.GetFile.
func Recompose(header []byte, sections []store.Section) []byte {
	children := childrenByParent(sections)

	var buf bytes.Buffer
	buf.Write(header)
	for _, sec := range sections {
		if sec.ParentID == nil {
			emit(&buf, sec, children)
		}
	}
	return buf.Bytes()
}

func childrenByParent(sections []store.Section) map[int64][]store.Section {
	m := make(map[int64][]store.Section)
	for _, sec := range sections {
		if sec.ParentID != nil {
			m[*sec.ParentID] = append(m[*sec.ParentID], sec)
		}
	}
	return m
}

func emit(buf *bytes.Buffer, sec store.Section, children map[int64][]store.Section) {
	buf.Write(sec.Body)
	for _, child := range children[sec.ID] {
		emit(buf, child, children)
	}
	buf.Write(sec.ClosingSuffix)
}
