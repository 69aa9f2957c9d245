package codec

import "errors"

var (
	// ErrSchemaMismatch marks a decode whose result does not re-encode to the
	// document it was decoded from. It indicates a record type that drops or
	// rewrites fields, which would break the diff chain for every descendant.
	ErrSchemaMismatch = errors.New("schema mismatch")
)
