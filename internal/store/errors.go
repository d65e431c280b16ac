package store

import "errors"

// Sentinel errors returned by tree navigation and mutation.
var (
	ErrNotFound    = errors.New("object not found")
	ErrExists      = errors.New("object already exists")
	ErrNotGroup    = errors.New("object is not a group")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrClosed      = errors.New("file is closed")
	ErrInvalidName = errors.New("invalid object name")
	ErrUnsupported = errors.New("unsupported container feature")

	// ErrInvalidValue reports a value the container cannot store as given,
	// such as a string with an embedded NUL or an attribute too large for
	// an object header message.
	ErrInvalidValue = errors.New("invalid value")
)
