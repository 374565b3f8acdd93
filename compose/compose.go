// Package compose implements the Composer (spec §4.10, component C10):
// assembling a new document from an existing set of stored sections.
package compose

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/joeybe1/secsplit/hashutil"
	"github.com/joeybe1/secsplit/recompose"
	"github.com/joeybe1/secsplit/store"
)

// Metadata is marshaled into the freshly generated header (§4.10 step 3).
// A batch_id is always stamped in, distinguishing otherwise-identical
// compose calls from one another (SPEC_FULL §B).
type Metadata map[string]string

// Composer assembles new documents from sections already in s.
type Composer struct {
	Store *store.Store
}

// New wraps s in a Composer.
func New(s *store.Store) *Composer {
	return &Composer{Store: s}
}

// Compose implements §4.10: load each section by id (preserving the
// requested order), rebuild parent/child relations among the selected
// set, emit a fresh header from metadata, recompose the body via the
// same rule §4.5 uses, write the result to outputPath, and return its
// content hash.
func (c *Composer) Compose(ctx context.Context, sectionIDs []int64, outputPath string, metadata Metadata) (string, error) {
	selected := make([]store.Section, 0, len(sectionIDs))
	known := make(map[int64]bool, len(sectionIDs))
	for _, id := range sectionIDs {
		sec, err := c.Store.GetSection(ctx, id)
		if err != nil {
			return "", fmt.Errorf("loading section %d: %w", id, err)
		}
		selected = append(selected, *sec)
		known[id] = true
	}

	rebuilt := rebuildHierarchy(selected, known)

	header, err := renderHeader(metadata)
	if err != nil {
		return "", fmt.Errorf("rendering header: %w", err)
	}

	out := recompose.Recompose(header, rebuilt)

	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", outputPath, err)
	}

	return hashutil.Hash(out), nil
}

// rebuildHierarchy implements §4.10 step 2: a section keeps its
// parent_id only if that parent is also in the selected set; otherwise
// it becomes top-level. Order is preserved as requested (the order
// sectionIDs were given in, which is already selected's order).
func rebuildHierarchy(selected []store.Section, known map[int64]bool) []store.Section {
	out := make([]store.Section, len(selected))
	copy(out, selected)
	for i := range out {
		if out[i].ParentID != nil && !known[*out[i].ParentID] {
			out[i].ParentID = nil
		}
	}
	return out
}

func renderHeader(metadata Metadata) ([]byte, error) {
	m := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		m[k] = v
	}
	if _, ok := m["batch_id"]; !ok {
		m["batch_id"] = uuid.NewString()
	}

	body, err := yaml.Marshal(m)
	if err != nil {
		return nil, err
	}

	header := append([]byte("---\n"), body...)
	header = append(header, []byte("---\n")...)
	return header, nil
}
