// Package apperr holds the sentinel errors shared across recipebox layers.
package apperr

import "errors"

var (
	// ErrCorruption means the persisted document could not be decoded.
	ErrCorruption = errors.New("document corrupted")
	// ErrInvalidInput is returned when user-supplied fields fail validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrOutOfRange is returned for index-based operations on a stale snapshot.
	ErrOutOfRange = errors.New("index out of range")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)
