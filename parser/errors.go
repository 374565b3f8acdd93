package parser

import "errors"

// errInputMalformed and errByteAccounting are parser-local sentinels. The
// root package wraps them with its own exported taxonomy (secsplit.ErrInputMalformed,
// secsplit.ErrByteAccounting) at the library boundary; callers inside this
// package and its tests match on these directly.
var (
	errInputMalformed = errors.New("parser: malformed input")
	errByteAccounting = errors.New("parser: byte accounting failure")
)

// ErrInputMalformed is the sentinel for header/tag structural errors,
// exported so callers outside this package can errors.Is against it without
// reaching into the root package.
var ErrInputMalformed = errInputMalformed

// ErrByteAccounting is the sentinel for the parser self-check failure.
var ErrByteAccounting = errByteAccounting
