// Package parser implements the byte-perfect section parser (spec §4.2,
// component C2). It produces an ordered section tree plus a preserved
// header such that every byte of the input is accounted for in exactly
// one of: the header, a section's body, or a section's closing suffix.
package parser

import (
	"fmt"
	"strings"

	"github.com/joeybe1/secsplit/detect"
)

// Parse partitions data according to shape, which is normally the value
// detect.Detect returned for the same bytes. shape == detect.ShapeJSON and
// shape == detect.ShapeOpaque both produce a single whole-body section,
// since the core treats self-describing and unstructured input identically
// once format-specific component handlers are out of scope (SPEC_FULL.md §B).
func Parse(data []byte, shape detect.Shape, filename string) (*ParseResult, error) {
	header, rest, restOffset, err := extractHeader(data)
	if err != nil {
		return nil, err
	}

	var top []*Section
	switch shape {
	case detect.ShapeHeadings, detect.ShapeTags, detect.ShapeMixed:
		top, err = parseBody(data, rest, restOffset)
		if err != nil {
			return nil, err
		}
	default: // json, opaque
		top = []*Section{wholeBodySection(data, rest, restOffset, filename)}
	}

	result := &ParseResult{HeaderBlob: header, TopLevel: top}

	want := len(data)
	got := result.ByteAccounting()
	if got != want {
		return nil, fmt.Errorf("%w: accounted %d bytes, input is %d bytes", errByteAccounting, got, want)
	}
	return result, nil
}

// wholeBodySection builds the single depth-0 section used for opaque/json
// shapes (spec §4.1 step 4).
func wholeBodySection(data, rest []byte, restOffset int, filename string) *Section {
	lineStart, lineEnd := lineRangeFor(data, restOffset, len(data))
	return &Section{
		Depth:      0,
		Title:      filename,
		Body:       rest,
		LineStart:  lineStart,
		LineEnd:    lineEnd,
		rangeStart: restOffset,
		rangeEnd:   len(data),
	}
}

// extractHeader implements the header-extraction rule in spec §4.2: a
// leading block delimited by two lines each containing exactly "---".
func extractHeader(data []byte) (header, rest []byte, restOffset int, err error) {
	spans := splitLineSpans(data)
	if len(spans) == 0 {
		return nil, data, 0, nil
	}
	first := lineText(data, spans[0])
	if strings.TrimRight(first, "\r") != "---" {
		return nil, data, 0, nil
	}
	for i := 1; i < len(spans); i++ {
		text := lineText(data, spans[i])
		if strings.TrimRight(text, "\r") == "---" {
			end := spans[i].end
			return data[:end], data[end:], end, nil
		}
	}
	return nil, nil, 0, fmt.Errorf("%w: unterminated header delimiter", errInputMalformed)
}

// lineText returns the line's content without its terminator.
func lineText(data []byte, s lineSpan) string {
	end := s.end
	for end > s.start && (data[end-1] == '\n' || data[end-1] == '\r') {
		end--
	}
	return string(data[s.start:end])
}

// lineRangeFor returns the 1-based inclusive [start,end] line numbers
// covering the byte range [from, to) within data.
func lineRangeFor(data []byte, from, to int) (start, end int) {
	if to <= from {
		to = from + 1
	}
	line := 1
	for i := 0; i < from && i < len(data); i++ {
		if data[i] == '\n' {
			line++
		}
	}
	start = line
	for i := from; i < to && i < len(data); i++ {
		if data[i] == '\n' {
			line++
		}
	}
	end = line
	return start, end
}
