package dataset

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// Malformed JSON or a top-level value that is not an object.
	FormatError ErrorKind = "format"
	// Valid JSON that breaks the turn schema.
	SchemaError ErrorKind = "schema"
	// Wrong extension or oversized file, detected before any content is read.
	SizeOrTypeError ErrorKind = "size_or_type"
)

// ValidationError reports the first offending line of a dataset. Index is the
// 0-based message index, or -1 when the error is not about a single message.
type ValidationError struct {
	Kind    ErrorKind
	Line    int
	Index   int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Line %d: %s.", e.Line, e.Message)
}

func formatErrorf(line int, format string, args ...any) error {
	return &ValidationError{Kind: FormatError, Line: line, Index: -1, Message: fmt.Sprintf(format, args...)}
}

func schemaErrorf(line, index int, format string, args ...any) error {
	return &ValidationError{Kind: SchemaError, Line: line, Index: index, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrFileTooLarge         = errors.New("file too large")
)

// FileError is returned when a file fails the name or size precondition.
type FileError struct {
	Name    string
	Size    int64
	Message string
	Err     error
}

func (e *FileError) Error() string {
	return e.Message
}

func (e *FileError) Unwrap() error {
	return e.Err
}

func (e *FileError) Kind() ErrorKind {
	return SizeOrTypeError
}

// KindOf classifies err as one of the dataset error kinds. The second return
// value is false for anything else, e.g. read failures or cancellation.
func KindOf(err error) (ErrorKind, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Kind, true
	}
	var ferr *FileError
	if errors.As(err, &ferr) {
		return SizeOrTypeError, true
	}
	return "", false
}
