package bank

import (
	"errors"
	"fmt"
)

// IndexOutOfRangeError reports a slice lookup past the end of a bank.
//
// This is a programming-level invariant violation: correct generator
// output never references an out-of-range slice, so this error showing
// up means a bug, not a runtime condition to recover from.
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("slice index %d out of range (bank has %d slices)", e.Index, e.Count)
}

// IsIndexOutOfRange reports whether err is an IndexOutOfRangeError.
// Uses errors.As to handle wrapped errors.
func IsIndexOutOfRange(err error) bool {
	var e *IndexOutOfRangeError
	return errors.As(err, &e)
}

// ValidationError reports a malformed bank document, rejected at
// construction before any state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid bank: %s: %s", e.Field, e.Message)
}
