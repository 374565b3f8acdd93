// Package validate implements the sole acceptance test for the storage
// round-trip (spec §4.6, component C6): parse → store → recompose →
// hash equality.
package validate

import (
	"context"
	"fmt"

	"github.com/joeybe1/secsplit/hashutil"
	"github.com/joeybe1/secsplit/recompose"
	"github.com/joeybe1/secsplit/store"
)

// Result is the outcome of validating one stored file.
type Result struct {
	Path      string
	Ok        bool
	Mismatch  int // always -1: Validate has no original bytes to compare; see DiagnoseByteOffset
	GotHash   string
	WantHash  string
	GotLength int
}

// Validate reads path from s, recomposes it, rehashes the result, and
// compares against files.content_hash. It never mutates the store.
func Validate(ctx context.Context, s *store.Store, path string) (Result, error) {
	f, sections, err := s.GetFile(ctx, path)
	if err != nil {
		return Result{}, fmt.Errorf("loading %s: %w", path, err)
	}

	recomposed := recompose.Recompose(f.HeaderBlob, sections)
	gotHash := hashutil.Hash(recomposed)

	res := Result{
		Path:      path,
		GotHash:   gotHash,
		WantHash:  f.ContentHash,
		GotLength: len(recomposed),
		Mismatch:  -1,
	}
	if gotHash == f.ContentHash {
		res.Ok = true
		return res, nil
	}
	res.Ok = false
	return res, nil
}

// DiagnoseByteOffset compares recomposed against original and returns the
// index of the first differing byte. If one is a prefix of the other, it
// returns the shorter length; if both are equal, it returns -1. This is a development
// aid for callers that still hold the original bytes (e.g. tests); the
// Store itself never retains a copy of the original buffer once sections
// are persisted (design note §9, "zero-copy bodies ... copied once into
// the store").
func DiagnoseByteOffset(original, recomposed []byte) int {
	n := len(original)
	if len(recomposed) < n {
		n = len(recomposed)
	}
	for i := 0; i < n; i++ {
		if original[i] != recomposed[i] {
			return i
		}
	}
	if len(original) != len(recomposed) {
		return n
	}
	return -1
}
