package secsplit

import "errors"

// Error taxonomy, by kind rather than by concrete type (spec §7).
var (
	// ErrNotFound is returned when no file exists at a path, or no section
	// exists at an id. Soft result — callers get it back as a value.
	ErrNotFound = errors.New("secsplit: not found")

	// ErrInputMalformed is returned when header delimiters are unbalanced
	// or a tag block's open/close pair doesn't match. The file is not
	// ingested.
	ErrInputMalformed = errors.New("secsplit: malformed input")

	// ErrByteAccounting is returned when the parser's self-check
	// (header + Σ(body+closing_suffix) == len(input)) fails. This is a
	// parser bug, not a user error, and aborts ingestion.
	ErrByteAccounting = errors.New("secsplit: byte accounting failure")

	// ErrStoreBusy is returned when a write is attempted while another
	// writer holds the store. Retryable with backoff by the caller.
	ErrStoreBusy = errors.New("secsplit: store busy")

	// ErrStoreClosed is returned when operating on a closed store handle.
	ErrStoreClosed = errors.New("secsplit: store is closed")

	// ErrStoreCorruption is returned when a read-time integrity check
	// against content_hash fails. Fatal for that file.
	ErrStoreCorruption = errors.New("secsplit: store corruption detected")

	// ErrExternalTransient marks an Embedder timeout, rate-limit, or 5xx
	// class failure. Retried with backoff up to the configured budget.
	ErrExternalTransient = errors.New("secsplit: external call failed transiently")

	// ErrExternalPermanent marks an Embedder rejection (malformed or
	// oversized input). Not retried; recorded against the item.
	ErrExternalPermanent = errors.New("secsplit: external call failed permanently")

	// ErrInvalidConfig is returned for invalid configuration values, or for
	// a File.kind/shape tag outside the closed enumeration (§3).
	ErrInvalidConfig = errors.New("secsplit: invalid configuration")

	// ErrAlreadyOpenForWrite is returned when a second writer handle is
	// opened against a store file already owned by this process (§5).
	ErrAlreadyOpenForWrite = errors.New("secsplit: store already open for writes")
)
