package model

import (
	"errors"
	"fmt"
)

// ErrMalformedJSON is wrapped by validation errors for input that is not a
// single well-formed JSON value.
var ErrMalformedJSON = errors.New("malformed JSON")

var (
	errNilPayload     = errors.New("nil payload")
	errUnknownVariant = errors.New("nested element has no data for its variant")
)

// ValidationError reports the first structural mismatch found while parsing
// an inbound document. Path uses dotted field names and [i] array indexes;
// it is empty when the problem is with the document as a whole.
type ValidationError struct {
	Path   string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return e.Path + ": " + e.Reason
}

// Unwrap returns the underlying error, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(path, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// ProjectionError is raised (as a panic value) when a validated payload can
// not be converted into its storage form. It always indicates a bug.
type ProjectionError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ProjectionError) Error() string {
	return fmt.Sprintf("projection failed at %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProjectionError) Unwrap() error {
	return e.Err
}
