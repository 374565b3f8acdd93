package store

import "errors"

// Package-local sentinels. The root package wraps these with its own
// exported taxonomy (secsplit.ErrNotFound, secsplit.ErrInvalidConfig, ...)
// at the library boundary.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrInvalidKind   = errors.New("store: kind not in closed enumeration")
	ErrInvalidShape  = errors.New("store: shape not in closed enumeration")
	ErrClosed        = errors.New("store: store is closed")
	ErrAlreadyOpen   = errors.New("store: already open for writes")
)
