// Package detect classifies raw document bytes into one of the structural
// shapes the parser knows how to partition (spec §4.1, component C1).
package detect

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Shape names a structural scheme, stored verbatim as File.shape (spec §3).
type Shape string

const (
	ShapeHeadings   Shape = "headings"
	ShapeTags       Shape = "tags"
	ShapeMixed      Shape = "mixed"
	ShapeJSON       Shape = "json"
	ShapeOpaque     Shape = "opaque"
)

// isTagOpenLine matches a line whose trimmed content opens a tag block:
// "<name>" or "<name attr=...>", on its own line.
func isTagOpenLine(line string) (name string, ok bool) {
	t := strings.TrimSpace(line)
	if len(t) < 3 || t[0] != '<' || !strings.HasSuffix(t, ">") {
		return "", false
	}
	if strings.HasPrefix(t, "</") {
		return "", false
	}
	inner := t[1 : len(t)-1]
	if inner == "" || inner[0] == '/' {
		return "", false
	}
	// name is the leading run of non-space, non-'/' characters.
	end := strings.IndexAny(inner, " \t/")
	if end < 0 {
		end = len(inner)
	}
	name = inner[:end]
	if name == "" {
		return "", false
	}
	return name, true
}

// isTagCloseLine matches a line whose trimmed content is exactly "</name>".
func isTagCloseLine(line string) (name string, ok bool) {
	t := strings.TrimSpace(line)
	if len(t) < 4 || !strings.HasPrefix(t, "</") || !strings.HasSuffix(t, ">") {
		return "", false
	}
	name = t[2 : len(t)-1]
	if name == "" {
		return "", false
	}
	return name, true
}

// isHeadingLine matches a line beginning with 1..6 '#' characters, a single
// space, and at least one non-space byte.
func isHeadingLine(line string) bool {
	i := 0
	for i < len(line) && i < 6 && line[i] == '#' {
		i++
	}
	if i == 0 || i > 6 {
		return false
	}
	if i >= len(line) || line[i] != ' ' {
		return false
	}
	rest := line[i+1:]
	return strings.TrimSpace(rest) != ""
}

// isFenceLine reports whether line opens/closes a fenced code region, and
// returns the fence marker ("```" or "~~~").
func isFenceLine(line string) (marker string, ok bool) {
	t := strings.TrimSpace(line)
	for _, m := range []string{"```", "~~~"} {
		if strings.HasPrefix(t, m) {
			return m, true
		}
	}
	return "", false
}

// Detect classifies the input bytes per the decision procedure in spec §4.1.
// path is a hint only and never changes the classification.
func Detect(data []byte, path string) Shape {
	if looksLikeJSON(data) {
		return ShapeJSON
	}

	hasTag, tagPrecedesHeading, hasHeading := scanStructure(data)

	switch {
	case hasTag && hasHeading:
		return ShapeMixed
	case hasTag:
		return ShapeTags
	case hasHeading:
		return ShapeHeadings
	}
	_ = tagPrecedesHeading
	return ShapeOpaque
}

// looksLikeJSON reports whether data parses as a self-describing structured
// object at the top level (spec §4.1 step 1).
func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	var v interface{}
	return json.Unmarshal(trimmed, &v) == nil
}

// scanStructure walks the document line by line, tracking the fenced-code
// guard, and reports whether any tag-bounded block and/or heading line was
// found outside of a fence.
func scanStructure(data []byte) (hasTag, tagBeforeHeading, hasHeading bool) {
	lines := splitLinesKeepEmpty(data)

	var fenceMarker string
	inFence := false
	openTags := map[string]int{}

	for _, line := range lines {
		if marker, ok := isFenceLine(line); ok {
			if !inFence {
				inFence = true
				fenceMarker = marker
			} else if marker == fenceMarker {
				inFence = false
				fenceMarker = ""
			}
			continue
		}
		if inFence {
			continue
		}

		if name, ok := isTagOpenLine(line); ok {
			openTags[name]++
			hasTag = true
			if !hasHeading {
				tagBeforeHeading = true
			}
			continue
		}
		if name, ok := isTagCloseLine(line); ok {
			if openTags[name] > 0 {
				openTags[name]--
			}
			continue
		}
		if isHeadingLine(line) {
			hasHeading = true
		}
	}

	return hasTag, tagBeforeHeading, hasHeading
}

// splitLinesKeepEmpty splits on '\n' without discarding a trailing empty
// element, mirroring how the parser walks the same buffer.
func splitLinesKeepEmpty(data []byte) []string {
	s := string(data)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
