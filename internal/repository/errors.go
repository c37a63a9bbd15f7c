package repository

import "errors"

// The three error kinds callers can observe. Backend adapters translate
// store-specific failures into these at the boundary; nothing below leaks
// upward unclassified.
var (
	// ErrNotFound indicates the requested record does not exist or has expired.
	ErrNotFound = errors.New("repository: not found")
	// ErrUnexpected indicates a rejected conditional write, an exhausted
	// retry budget, malformed primary data, or an unsupported token schema.
	ErrUnexpected = errors.New("repository: unexpected error")
	// ErrBackendUnavailable indicates connectivity or timeout failure
	// against the external store, distinct from a miss.
	ErrBackendUnavailable = errors.New("repository: backend unavailable")
)
