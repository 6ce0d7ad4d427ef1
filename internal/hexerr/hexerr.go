// Package hexerr defines the error kinds shared by the hexpeek engine.
//
// Callers classify failures with errors.Is against the sentinels; the typed
// errors carry the details and match their sentinel.
package hexerr

import (
	"errors"
	"fmt"
)

var (
	// ErrRange indicates a read outside the bounds of a store.
	ErrRange = errors.New("read out of range")

	// ErrInvalidPattern indicates an empty or malformed search pattern.
	ErrInvalidPattern = errors.New("invalid search pattern")

	// ErrUnsupportedFormat indicates an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrIO indicates a failure of the underlying file system.
	ErrIO = errors.New("i/o failure")

	// ErrCancelled indicates cooperative cancellation was observed mid-scan.
	ErrCancelled = errors.New("operation cancelled")
)

// RangeError describes an out-of-bounds read request.
type RangeError struct {
	Offset int64
	Count  int64
	Length int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("read out of range: offset %d count %d (length %d)", e.Offset, e.Count, e.Length)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrRange
}

// CheckRange returns a *RangeError unless [offset, offset+count) lies inside
// a store of the given length.
func CheckRange(offset, count, length int64) error {
	if offset < 0 || count < 0 || offset > length || count > length-offset {
		return &RangeError{Offset: offset, Count: count, Length: length}
	}
	return nil
}

// IOError wraps a file system failure with the source it happened on.
type IOError struct {
	Source string
	Offset int64
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i/o failure on %s at offset %d: %v", e.Source, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// Cancelled wraps a context error so that it matches ErrCancelled while still
// unwrapping to the context cause.
func Cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
