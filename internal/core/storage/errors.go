package storage

import "errors"

var (
	// ErrNotFound marks a read of an id with no stored blob.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidID marks an id the store cannot represent, such as one
	// containing path separators.
	ErrInvalidID = errors.New("invalid blob id")
)
