package gen

import (
	"errors"
	"fmt"
)

// InvalidParametersError reports malformed generation parameters,
// rejected before any work happens. Callers may correct and retry.
type InvalidParametersError struct {
	Field   string
	Message string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters: %s: %s", e.Field, e.Message)
}

// IsInvalidParameters reports whether err is an InvalidParametersError.
// Uses errors.As to handle wrapped errors.
func IsInvalidParameters(err error) bool {
	var e *InvalidParametersError
	return errors.As(err, &e)
}

// UnknownFollowSourceError reports a follow-mode generation whose
// referenced bank has no prior timeline. Recoverable: the caller may
// retry after the source bank produces output.
type UnknownFollowSourceError struct {
	BankID string
}

func (e *UnknownFollowSourceError) Error() string {
	return fmt.Sprintf("unknown follow source: bank %q has no generated timeline", e.BankID)
}

// IsUnknownFollowSource reports whether err is an UnknownFollowSourceError.
func IsUnknownFollowSource(err error) bool {
	var e *UnknownFollowSourceError
	return errors.As(err, &e)
}
