package extension

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPath is returned for an empty path or a path with an empty segment
	ErrMalformedPath = errors.New("malformed path")

	// ErrFieldNotFound is returned when a path segment has no counterpart in the schema or data
	ErrFieldNotFound = errors.New("invalid uid, field not found")

	// ErrUnsavedEntry is returned when fields are requested before the entry was first saved
	ErrUnsavedEntry = errors.New("the data is unsaved, save the data before requesting the field")

	// ErrUnsupportedWrite is returned by SetData on container and definition handles
	ErrUnsupportedWrite = errors.New("cannot call set data for current field type")

	// ErrNilCallback is returned when subscribing without a callback
	ErrNilCallback = errors.New("callback must be a function")
)

// PathError records which segment of a path failed to resolve
type PathError struct {
	Path    string
	Segment int // index of the failing segment, -1 when the whole path is at fault
	Reason  string
	Err     error
}

func (e *PathError) Error() string {
	msg := e.Err.Error()
	if e.Segment >= 0 {
		msg = fmt.Sprintf("%s: %q at segment %d", msg, e.Path, e.Segment)
	} else if e.Path != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Path)
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError wraps err with the failing path position
func NewPathError(path string, segment int, err error, reason string) *PathError {
	return &PathError{Path: path, Segment: segment, Err: err, Reason: reason}
}
