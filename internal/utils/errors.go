package utils

import "fmt"

// H5Error is a container-level error carrying the operation that failed.
type H5Error struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *H5Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap provides compatibility with errors.Is and errors.As.
func (e *H5Error) Unwrap() error {
	return e.Cause
}

// WrapError creates a contextual error. A nil cause yields nil so callers
// can wrap unconditionally on return paths.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &H5Error{
		Context: context,
		Cause:   cause,
	}
}

// WrapErrorf is WrapError with a formatted context.
func WrapErrorf(cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &H5Error{
		Context: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}
