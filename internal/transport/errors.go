package transport

import (
	"errors"
	"fmt"
)

// ConnectionLostError is the terminal failure surfaced after the
// reconnection budget is exhausted. Individual dropped connections
// are not errors; only giving up is.
type ConnectionLostError struct {
	Attempts int
	Cause    error
}

func (e *ConnectionLostError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection lost after %d reconnect attempts: %v", e.Attempts, e.Cause)
	}
	return fmt.Sprintf("connection lost after %d reconnect attempts", e.Attempts)
}

func (e *ConnectionLostError) Unwrap() error { return e.Cause }

// IsConnectionLost reports whether err is a ConnectionLostError.
func IsConnectionLost(err error) bool {
	var cle *ConnectionLostError
	return errors.As(err, &cle)
}
