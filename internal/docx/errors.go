package docx

import (
	"errors"
	"fmt"
)

// Access failure reasons.
const (
	ReasonMissing    = "missing"
	ReasonZeroBytes  = "zero-length"
	ReasonOversized  = "over size limit"
	ReasonWrongType  = "wrong extension"
	ReasonLocked     = "locked"
	ReasonUnreadable = "unreadable"
)

// AccessError reports a document that could not be opened at all: missing,
// locked, unreadable, zero-length, oversized, or the wrong type. Fatal for
// the file, never for the run.
type AccessError struct {
	Path   string
	Reason string
	Err    error
}

func (e *AccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot access %s (%s): %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot access %s (%s)", e.Path, e.Reason)
}

func (e *AccessError) Unwrap() error { return e.Err }

// FormatError reports a document that opened but is not a valid OOXML
// package: corrupted zip, missing document body, malformed relationships.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid document %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IsAccessError reports whether err is (or wraps) an AccessError.
func IsAccessError(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}

// IsFormatError reports whether err is (or wraps) a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
