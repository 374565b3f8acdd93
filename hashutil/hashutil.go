// Package hashutil computes the content digests the Store treats as
// authoritative identity for a File (spec §4.3, component C3).
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Hash returns the SHA-256 digest of data, hex-encoded. This is the value
// persisted as files.content_hash and is computed over the raw input
// bytes before any processing (spec invariant 4).
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CombinedHash computes the multi-file aggregate digest described in
// §4.3: a SHA-256 over the ordered concatenation of the primary file's
// digest bytes followed by each related file's digest bytes, in the
// order the related-files collaborator reports them.
func CombinedHash(primary []byte, related [][]byte) string {
	h := sha256.New()
	primarySum := sha256.Sum256(primary)
	h.Write(primarySum[:])
	for _, r := range related {
		sum := sha256.Sum256(r)
		h.Write(sum[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a fast, non-cryptographic 64-bit digest used only to
// short-circuit duplicate-content detection on re-ingest before paying for
// a full SHA-256 comparison. It never substitutes for Hash as the value
// written to content_hash.
func Fingerprint(data []byte) uint64 {
	return xxhash.Sum64(data)
}
